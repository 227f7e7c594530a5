package browser

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/linkedin-outreach/internal/ledger"
	"github.com/yourusername/linkedin-outreach/internal/session"
)

func TestCriteriaQueries(t *testing.T) {
	c := Criteria{JobTitles: []string{"Engineer", "Designer"}, Keywords: []string{"golang", "remote"}}
	assert.Equal(t, []string{"Engineer golang remote", "Designer golang remote"}, c.Queries())

	assert.Equal(t, []string{"alumni"}, Criteria{Keywords: []string{"alumni"}}.Queries())
	assert.Empty(t, Criteria{}.Queries())
}

func TestCriteriaSearchURL(t *testing.T) {
	c := Criteria{Locations: []string{"103644278", "ignored"}}

	u, err := url.Parse(c.SearchURL("Engineer golang"))
	require.NoError(t, err)

	assert.Equal(t, "www.linkedin.com", u.Host)
	assert.Equal(t, "/search/results/people/", u.Path)
	assert.Equal(t, "Engineer golang", u.Query().Get("keywords"))
	assert.Equal(t, "103644278", u.Query().Get("geoUrn"))
	assert.Equal(t, "FACETED_SEARCH", u.Query().Get("origin"))
}

func TestCollectorKeepsFirstAndFillsDetails(t *testing.T) {
	c := newCollector(0, nil)

	added := c.add([]profileLink{
		{Href: "https://www.linkedin.com/in/ada/?miniProfileUrn=x"},
		{Href: "https://www.linkedin.com/in/ada", Name: "Ada Lovelace\nView profile", Headline: " Analyst "},
		{Href: "https://www.linkedin.com/company/acme"},
		{Href: "https://example.com/in/ada"},
		{Href: "javascript:void(0)"},
		{Href: ""},
		{Href: "https://www.linkedin.com/in/grace", Name: "LinkedIn Member"},
	})

	assert.Equal(t, 2, added)
	assert.Equal(t, []session.Candidate{
		{TargetID: "https://www.linkedin.com/in/ada", Name: "Ada Lovelace View profile", Headline: "Analyst"},
		{TargetID: "https://www.linkedin.com/in/grace"},
	}, c.out)
}

func TestCollectorStopsAtLimit(t *testing.T) {
	c := newCollector(2, nil)

	c.add([]profileLink{
		{Href: "https://www.linkedin.com/in/a"},
		{Href: "https://www.linkedin.com/in/b"},
		{Href: "https://www.linkedin.com/in/c"},
	})

	assert.True(t, c.full())
	assert.Len(t, c.out, 2)
}

func TestCollectorSkipsContactedProfiles(t *testing.T) {
	l := ledger.NewMemory()
	require.NoError(t, l.RecordContacted(context.Background(), "https://www.linkedin.com/in/a", "hi"))
	require.NoError(t, l.RecordContacted(context.Background(), "https://www.linkedin.com/in/b", "hi"))
	c := newCollector(2, l.HasContacted)

	added := c.add([]profileLink{
		{Href: "https://www.linkedin.com/in/a"},
		{Href: "https://www.linkedin.com/in/b/?trk=x"},
		{Href: "https://www.linkedin.com/in/c"},
		{Href: "https://www.linkedin.com/in/a", Name: "Ada"},
	})

	assert.Equal(t, 1, added)
	assert.Equal(t, []session.Candidate{{TargetID: "https://www.linkedin.com/in/c"}}, c.out)
	assert.Equal(t, 2, c.known)
	assert.False(t, c.full())
}

func TestDetachOutlivesLookupTimeout(t *testing.T) {
	page := (&rod.Page{}).Context(context.Background())
	el := (&rod.Element{}).Context(page.Timeout(20 * time.Millisecond).GetContext())

	detached := detach(el)
	time.Sleep(50 * time.Millisecond)

	assert.ErrorIs(t, el.GetContext().Err(), context.Canceled)
	assert.NoError(t, detached.GetContext().Err())
}

func TestFromURLs(t *testing.T) {
	got := FromURLs([]string{
		"https://www.linkedin.com/in/a/",
		"https://WWW.LINKEDIN.COM/in/a?trk=1",
		"not a url",
		"https://linkedin.com/in/b",
		"http://www.linkedin.com/in/b/",
	})

	require.Len(t, got, 2)
	assert.Equal(t, "https://www.linkedin.com/in/a", got[0].TargetID)
	assert.Equal(t, "https://www.linkedin.com/in/b", got[1].TargetID)
}

func TestPacerBetween(t *testing.T) {
	p := newSeededPacer(1, 0, 0)

	for i := 0; i < 100; i++ {
		d := p.Between(time.Second, 2*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 2*time.Second)
	}
	assert.Equal(t, 3*time.Second, p.Between(3*time.Second, time.Second))
}

func TestPacerShouldBreak(t *testing.T) {
	p := newSeededPacer(1, 0, 5)

	for _, n := range []int{0, 1, 4, 6, 9} {
		assert.False(t, p.ShouldBreak(n), n)
	}

	breaks := 0
	for i := 0; i < 200; i++ {
		if p.ShouldBreak(10) {
			breaks++
		}
	}
	assert.Greater(t, breaks, 0)
	assert.Less(t, breaks, 200)

	assert.False(t, newSeededPacer(1, 0, 0).ShouldBreak(25))
}

func TestPacerKeystrokeDelayBounds(t *testing.T) {
	p := newSeededPacer(7, 100*time.Millisecond, 0)

	for i := 0; i < 200; i++ {
		d := p.KeystrokeDelay(i)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 1120*time.Millisecond)
	}
}

func TestPacerTypoUsesNeighbourKey(t *testing.T) {
	p := newSeededPacer(3, 0, 0)
	p.TypoRate = 1

	wrong, ok := p.typo('A')
	require.True(t, ok)
	assert.Contains(t, keyNeighbours['a'], string(wrong))

	_, ok = p.typo('7')
	assert.False(t, ok)

	p.TypoRate = 0
	_, ok = p.typo('a')
	assert.False(t, ok)
}

func TestBezierEndpoints(t *testing.T) {
	start, end := point{X: 0, Y: 0}, point{X: 300, Y: 120}
	path := newSeededPacer(5, 0, 0).mousePath(start, end, 20)

	require.Len(t, path, 21)
	assert.Equal(t, start, path[0])
	assert.InDelta(t, end.X, path[20].X, 1e-9)
	assert.InDelta(t, end.Y, path[20].Y, 1e-9)
}

func TestMouseStepDelayIsSlowerAtEdges(t *testing.T) {
	assert.Greater(t, mouseStepDelay(0), mouseStepDelay(0.5))
	assert.Greater(t, mouseStepDelay(1), mouseStepDelay(0.5))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}

func TestCookiesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions", "cookies.json")

	err := saveCookies(path, []*proto.NetworkCookie{{
		Name:     "li_at",
		Value:    "token",
		Domain:   ".www.linkedin.com",
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
	}})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	params, err := readCookies(path)
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "li_at", params[0].Name)
	assert.Equal(t, "token", params[0].Value)
	assert.Equal(t, ".www.linkedin.com", params[0].Domain)
	assert.True(t, params[0].HTTPOnly)
}

func TestReadCookiesErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := readCookies(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0600))
	_, err = readCookies(empty)
	assert.ErrorContains(t, err, "empty")
}
