package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/yourusername/linkedin-outreach/internal/ledger"
	"github.com/yourusername/linkedin-outreach/internal/logger"
	"github.com/yourusername/linkedin-outreach/internal/session"
)

const peopleSearchURL = "https://www.linkedin.com/search/results/people/"

// Criteria describes a people search. Each job title is searched on its own,
// combined with all keywords.
type Criteria struct {
	JobTitles []string
	Locations []string
	Keywords  []string
	MaxPages  int
}

// Queries returns the keyword strings the search runs.
func (c Criteria) Queries() []string {
	extra := strings.Join(c.Keywords, " ")
	if len(c.JobTitles) == 0 {
		if extra == "" {
			return nil
		}
		return []string{extra}
	}

	out := make([]string, 0, len(c.JobTitles))
	for _, title := range c.JobTitles {
		out = append(out, strings.TrimSpace(title+" "+extra))
	}
	return out
}

// SearchURL builds the people search URL for one query.
func (c Criteria) SearchURL(query string) string {
	params := url.Values{}
	params.Set("keywords", query)
	if len(c.Locations) > 0 {
		params.Set("geoUrn", c.Locations[0])
	}
	params.Set("origin", "FACETED_SEARCH")
	return peopleSearchURL + "?" + params.Encode()
}

// profileLink is one profile anchor scraped from a results page.
type profileLink struct {
	Href     string
	Name     string
	Headline string
	Detail   string
}

const extractLinksJS = `() => Array.from(document.querySelectorAll("a[href*='/in/']")).map(a => {
	const card = a.closest('li') || a.parentElement;
	const pick = (sel) => {
		const el = card ? card.querySelector(sel) : null;
		return el ? el.innerText.trim() : '';
	};
	return {
		href: a.href || '',
		name: (a.innerText || '').split('\n')[0].trim(),
		headline: pick('.entity-result__primary-subtitle'),
		detail: pick('.entity-result__secondary-subtitle'),
	};
})`

// Known reports whether a profile was already contacted. Known profiles are
// left out of collection and do not count toward its limit.
type Known func(targetID string) bool

// CollectProfiles runs the search and returns up to limit candidates in the
// order they were found. limit <= 0 means no limit.
func CollectProfiles(ctx context.Context, page *rod.Page, criteria Criteria, limit int, known Known, pace *Pacer) ([]session.Candidate, error) {
	queries := criteria.Queries()
	if len(queries) == 0 {
		return nil, fmt.Errorf("search needs at least one job title or keyword")
	}
	page = page.Context(ctx)

	c := newCollector(limit, known)
	for i, query := range queries {
		if c.full() {
			break
		}
		if i > 0 {
			if err := pace.Wait(ctx, 10*time.Second, 20*time.Second); err != nil {
				return c.out, err
			}
		}

		if err := searchQuery(ctx, page, criteria, query, pace, c); err != nil {
			if ctx.Err() != nil {
				return c.out, ctx.Err()
			}
			logger.Error("Search failed", "query", query, "error", err)
		}
	}

	logger.Info("Profile search completed", "found", len(c.out), "already_contacted", c.known)
	return c.out, nil
}

func searchQuery(ctx context.Context, page *rod.Page, criteria Criteria, query string, pace *Pacer, c *collector) error {
	searchURL := criteria.SearchURL(query)
	logger.Info("Searching profiles", "query", query, "url", searchURL)

	if err := open(ctx, page, pace, searchURL); err != nil {
		return err
	}

	pages := criteria.MaxPages
	if pages < 1 {
		pages = 1
	}

	for n := 1; n <= pages && !c.full(); n++ {
		if err := scroll(ctx, page, pace, 4); err != nil {
			return err
		}

		links, err := extractLinks(page)
		if err != nil {
			return fmt.Errorf("failed to extract profiles on page %d: %w", n, err)
		}
		added := c.add(links)
		logger.Debug("Extracted profiles", "page", n, "links", len(links), "added", added)

		if n == pages || c.full() {
			break
		}
		more, err := nextPage(ctx, page, pace)
		if err != nil || !more {
			logger.Info("No more result pages", "page", n)
			break
		}
		if err := pace.Wait(ctx, 3*time.Second, 6*time.Second); err != nil {
			return err
		}
	}
	return nil
}

func extractLinks(page *rod.Page) ([]profileLink, error) {
	res, err := page.Eval(extractLinksJS)
	if err != nil {
		return nil, err
	}

	items := res.Value.Arr()
	links := make([]profileLink, 0, len(items))
	for _, item := range items {
		links = append(links, profileLink{
			Href:     item.Get("href").Str(),
			Name:     item.Get("name").Str(),
			Headline: item.Get("headline").Str(),
			Detail:   item.Get("detail").Str(),
		})
	}
	return links, nil
}

func nextPage(ctx context.Context, page *rod.Page, pace *Pacer) (bool, error) {
	next, err := findFirst(page, 3*time.Second,
		"button[aria-label='Next']",
		"button.artdeco-pagination__button--next",
	)
	if err != nil {
		return false, err
	}

	if disabled, err := next.Property("disabled"); err == nil && disabled.Bool() {
		return false, nil
	}
	if err := next.ScrollIntoView(); err != nil {
		logger.Warn("Failed to scroll to next button", "error", err)
	}
	if err := click(ctx, page, pace, next); err != nil {
		return false, fmt.Errorf("failed to click next button: %w", err)
	}
	return true, nil
}

// collector keeps the first occurrence of every profile not yet contacted.
type collector struct {
	limit int
	skip  Known
	index map[string]int
	out   []session.Candidate
	known int
}

func newCollector(limit int, skip Known) *collector {
	return &collector{limit: limit, skip: skip, index: make(map[string]int)}
}

func (c *collector) full() bool {
	return c.limit > 0 && len(c.out) >= c.limit
}

// add appends new profiles from links and returns how many were added.
// A later link for a known profile only fills in missing details.
func (c *collector) add(links []profileLink) int {
	added := 0
	for _, link := range links {
		id, err := ledger.Normalize(link.Href)
		if err != nil || !isLinkedInProfile(id) {
			continue
		}

		cand := session.Candidate{
			TargetID: id,
			Name:     cleanName(link.Name),
			Headline: strings.TrimSpace(link.Headline),
			Detail:   strings.TrimSpace(link.Detail),
		}

		if i, ok := c.index[id]; ok {
			if i >= 0 {
				fillMissing(&c.out[i], cand)
			}
			continue
		}
		if c.full() {
			continue
		}
		if c.skip != nil && c.skip(id) {
			logger.Debug("Profile already contacted, skipping", "profile_url", id)
			c.index[id] = -1
			c.known++
			continue
		}
		c.index[id] = len(c.out)
		c.out = append(c.out, cand)
		added++
	}
	return added
}

func isLinkedInProfile(id string) bool {
	if !ledger.IsProfileURL(id) {
		return false
	}
	u, err := url.Parse(id)
	if err != nil {
		return false
	}
	return u.Host == "linkedin.com" || strings.HasSuffix(u.Host, ".linkedin.com")
}

// cleanName drops LinkedIn's placeholder for hidden members.
func cleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if strings.EqualFold(name, "LinkedIn Member") {
		return ""
	}
	return name
}

func fillMissing(dst *session.Candidate, src session.Candidate) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Headline == "" {
		dst.Headline = src.Headline
	}
	if dst.Detail == "" {
		dst.Detail = src.Detail
	}
}

// FromURLs turns configured profile URLs into candidates, dropping
// duplicates and anything that is not a profile. Known profiles are kept so
// the session can report them as already contacted.
func FromURLs(urls []string) []session.Candidate {
	c := newCollector(0, nil)
	links := make([]profileLink, len(urls))
	for i, u := range urls {
		links[i] = profileLink{Href: u}
	}
	c.add(links)
	return c.out
}
