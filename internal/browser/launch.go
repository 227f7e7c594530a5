// Package browser drives LinkedIn through a stealth Chrome session.
//
// It finds candidates on people search and delivers connection requests or
// direct messages. Whether a candidate should be contacted is decided
// elsewhere; a Sender here only reports whether the send went through.
package browser

import (
	"fmt"
	"math/rand"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/yourusername/linkedin-outreach/internal/logger"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var viewports = []struct{ Width, Height int }{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

// LaunchOptions configures the Chrome process.
type LaunchOptions struct {
	Headless bool
	// UserAgent overrides the randomly picked user agent.
	UserAgent string
}

// Launch starts Chrome, preferring a system installation, and returns an
// incognito browser. The returned func closes it.
func Launch(opts LaunchOptions) (*rod.Browser, func(), error) {
	var l *launcher.Launcher
	if path, ok := launcher.LookPath(); ok {
		logger.Info("Using system Chrome browser", "path", path)
		l = launcher.New().Bin(path)
	} else {
		logger.Info("System Chrome not found, using downloaded browser")
		l = launcher.New()
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = userAgents[rand.Intn(len(userAgents))]
	}

	controlURL, err := l.Headless(opts.Headless).
		Devtools(false).
		Leakless(false).
		Set("user-agent", ua).
		Set("disable-blink-features", "AutomationControlled").
		Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	root := rod.New().ControlURL(controlURL)
	if err := root.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	browser, err := root.Incognito()
	if err != nil {
		_ = root.Close()
		return nil, nil, fmt.Errorf("failed to open incognito context: %w", err)
	}

	logger.Info("Browser launched", "headless", opts.Headless, "user_agent", ua)

	cleanup := func() {
		logger.Info("Closing browser...")
		if err := root.Close(); err != nil {
			logger.Warn("Failed to close browser", "error", err)
		}
	}
	return browser, cleanup, nil
}

// NewPage opens a page with the stealth evasions applied and a common
// desktop viewport.
func NewPage(browser *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	vp := viewports[rand.Intn(len(viewports))]
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  vp.Width,
		Height: vp.Height,
	}); err != nil {
		logger.Warn("Failed to set viewport", "error", err)
	}

	return page, nil
}
