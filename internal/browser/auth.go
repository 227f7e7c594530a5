package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/yourusername/linkedin-outreach/internal/logger"
	"github.com/yourusername/linkedin-outreach/internal/retry"
)

const (
	loginURL = "https://www.linkedin.com/login"
	feedURL  = "https://www.linkedin.com/feed/"
)

// ErrChallenge is returned when LinkedIn asks for a verification step that
// has to be completed by hand.
var ErrChallenge = errors.New("security challenge requires manual action")

// Credentials holds what Login needs.
type Credentials struct {
	Email      string
	Password   string
	CookiePath string
}

// Login reuses saved cookies when they still open the feed and otherwise
// signs in through the login form, saving the new cookies.
func Login(ctx context.Context, browser *rod.Browser, creds Credentials, pace *Pacer) error {
	logger.Info("Starting LinkedIn login", "email", creds.Email)

	err := restoreSession(ctx, browser, creds.CookiePath)
	if err == nil {
		logger.Info("Session is valid, skipping login")
		return nil
	}
	logger.Info("No usable saved session, signing in", "reason", err)

	policy := retry.Policy{
		Attempts:  3,
		BaseDelay: 2 * time.Second,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			logger.Warn("Login attempt failed", "attempt", attempt, "backoff", wait, "error", err)
		},
	}
	err = policy.Do(ctx, func(ctx context.Context) error {
		return formLogin(ctx, browser, creds, pace)
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	logger.Info("Login successful")
	return nil
}

func restoreSession(ctx context.Context, browser *rod.Browser, path string) error {
	cookies, err := readCookies(path)
	if err != nil {
		return err
	}

	page, err := NewPage(browser)
	if err != nil {
		return err
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.SetCookies(cookies); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	if err := page.Navigate(feedURL); err != nil {
		return fmt.Errorf("failed to open feed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	if err := sleep(ctx, 2*time.Second); err != nil {
		return err
	}
	if !isLoggedIn(page) {
		return errors.New("saved session expired")
	}
	return nil
}

func formLogin(ctx context.Context, browser *rod.Browser, creds Credentials, pace *Pacer) error {
	page, err := NewPage(browser)
	if err != nil {
		return err
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := open(ctx, page, pace, loginURL); err != nil {
		return err
	}

	email, err := page.Element("#username")
	if err != nil {
		return fmt.Errorf("email field not found: %w", err)
	}
	if err := typeText(ctx, page, pace, email, creds.Email); err != nil {
		return fmt.Errorf("failed to type email: %w", err)
	}
	if err := pace.Wait(ctx, 2*time.Second, 5*time.Second); err != nil {
		return err
	}

	password, err := page.Element("#password")
	if err != nil {
		return fmt.Errorf("password field not found: %w", err)
	}
	if err := password.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click password field: %w", err)
	}
	// Typed without typos so a correction never lands in the field.
	for _, r := range creds.Password {
		if err := password.Input(string(r)); err != nil {
			return fmt.Errorf("failed to type password: %w", err)
		}
		if err := pace.Wait(ctx, 100*time.Millisecond, 200*time.Millisecond); err != nil {
			return err
		}
	}

	submit, err := page.Element("button[type='submit']")
	if err != nil {
		return fmt.Errorf("sign in button not found: %w", err)
	}
	if err := click(ctx, page, pace, submit); err != nil {
		return fmt.Errorf("failed to click sign in button: %w", err)
	}

	if err := sleep(ctx, 5*time.Second); err != nil {
		return err
	}

	if challenge := detectChallenge(page); challenge != "" {
		return retry.Permanent(fmt.Errorf("%w: %s", ErrChallenge, challenge))
	}
	if !isLoggedIn(page) {
		return errors.New("not redirected to the feed after sign in")
	}

	cookies, err := page.Cookies(nil)
	if err != nil {
		logger.Warn("Failed to read cookies", "error", err)
		return nil
	}
	if err := saveCookies(creds.CookiePath, cookies); err != nil {
		logger.Warn("Failed to save session", "error", err)
	}
	return nil
}

// detectChallenge names the verification step on screen, if any.
func detectChallenge(page *rod.Page) string {
	for _, sel := range []string{"#input__phone_verification_pin", "input[name='pin']", "#two-step-challenge"} {
		if has, _, _ := page.Has(sel); has {
			return "two-step verification"
		}
	}

	info, err := page.Info()
	if err == nil && strings.Contains(info.URL, "/checkpoint/") {
		return "checkpoint"
	}
	return ""
}

func isLoggedIn(page *rod.Page) bool {
	for _, sel := range []string{"#global-nav", ".global-nav__me"} {
		if has, _, _ := page.Has(sel); has {
			return true
		}
	}

	info, err := page.Info()
	if err != nil {
		return false
	}
	return strings.Contains(info.URL, "/feed") || strings.Contains(info.URL, "/mynetwork")
}

func saveCookies(path string, cookies []*proto.NetworkCookie) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}

	logger.Info("Session saved", "path", path, "cookie_count", len(cookies))
	return nil
}

func readCookies(path string) ([]*proto.NetworkCookieParam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, errors.New("cookies file is empty")
	}

	params := make([]*proto.NetworkCookieParam, len(cookies))
	for i, c := range cookies {
		params[i] = &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
	}
	return params, nil
}
