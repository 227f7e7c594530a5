package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"

	"github.com/yourusername/linkedin-outreach/internal/browser"
	"github.com/yourusername/linkedin-outreach/internal/config"
	"github.com/yourusername/linkedin-outreach/internal/content"
	"github.com/yourusername/linkedin-outreach/internal/ledger"
	"github.com/yourusername/linkedin-outreach/internal/logger"
	"github.com/yourusername/linkedin-outreach/internal/prompt"
	"github.com/yourusername/linkedin-outreach/internal/retry"
	"github.com/yourusername/linkedin-outreach/internal/session"
)

const (
	AppVersion = "1.0.0"
)

func main() {
	displayWarningBanner()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.ToFile, cfg.Logging.FilePath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("LinkedIn outreach started", "version", AppVersion, "action", cfg.Session.Action)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Received shutdown signal, stopped")
			return
		}
		logger.Error("Outreach run failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if !cfg.IsBusinessHours(time.Now()) {
		logger.Info("Outside business hours, nothing to do",
			"start", cfg.Stealth.BusinessHours.Start,
			"end", cfg.Stealth.BusinessHours.End,
		)
		return nil
	}

	decider, err := newDecider(cfg)
	if err != nil {
		return err
	}

	l, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			logger.Warn("Failed to close ledger", "error", err)
		}
	}()

	maxContacts, ok := contactBudget(cfg, l, time.Now())
	if !ok {
		logger.Info("Daily limit reached, nothing to do", "limit", cfg.Connection.DailyLimit)
		return nil
	}

	b, cleanup, err := browser.Launch(browser.LaunchOptions{Headless: cfg.Stealth.Headless})
	if err != nil {
		return err
	}
	defer cleanup()

	pace := browser.NewPacer(cfg.GetTypingSpeed(), cfg.Stealth.BreakEvery)

	logger.Info("Authenticating with LinkedIn...")
	err = browser.Login(ctx, b, browser.Credentials{
		Email:      cfg.LinkedIn.Email,
		Password:   cfg.LinkedIn.Password,
		CookiePath: cfg.LinkedIn.CookiePath,
	}, pace)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	page, err := browser.NewPage(b)
	if err != nil {
		return err
	}
	defer page.Close()

	candidates, err := collectCandidates(ctx, cfg, l, page, pace)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		logger.Warn("No candidates found")
		return nil
	}

	var (
		sender   session.Sender
		composer content.Template
		minDelay time.Duration
		maxDelay time.Duration
	)
	switch cfg.Session.Action {
	case config.ActionMessage:
		sender = browser.NewMessenger(page, pace)
		composer = content.Template{Text: cfg.Messaging.Template}
		minDelay, maxDelay = cfg.MessageDelay()
	default:
		connector := browser.NewConnector(page, pace)
		connector.NoteLimit = cfg.Connection.MaxNoteLength
		sender = connector
		composer = content.Template{Text: cfg.Connection.NoteTemplate, MaxLength: cfg.Connection.MaxNoteLength}
		minDelay, maxDelay = cfg.ConnectionDelay()
	}

	base, capDelay := cfg.RetryDelays()
	sent := 0
	sess, err := session.New(l, decider, sender, session.Options{
		MaxContacts:         maxContacts,
		Retry:               retry.Policy{Attempts: cfg.Session.SendAttempts, BaseDelay: base, MaxDelay: capDelay},
		AbortOnPersistError: cfg.Session.AbortOnPersistError,
		Composer:            composer,
		OnOutcome: func(out session.Outcome) {
			if out.State != session.StateContacted {
				return
			}
			sent++
			pause := pace.Between(minDelay, maxDelay)
			if pace.ShouldBreak(sent) {
				pause = pace.BreakDuration()
				logger.Info("Taking a break", "duration", pause)
			}
			logger.Debug("Waiting before next target", "delay", pause)
			// A cancelled wait is picked up by the session before the next target.
			_ = pace.Wait(ctx, pause, pause)
		},
	})
	if err != nil {
		return err
	}

	res, runErr := sess.Run(ctx, candidates)
	report(res)

	if err := l.Flush(context.WithoutCancel(ctx)); err != nil {
		logger.Error("Some contacts are only held in memory", "pending", l.Pending(), "error", err)
	}
	return runErr
}

// newDecider never falls back to sending when no operator is present.
func newDecider(cfg *config.Config) (session.Decider, error) {
	if cfg.Session.Decision == config.DecisionAuto {
		logger.Warn("Automatic decisions enabled, every new candidate will be contacted")
		return prompt.Always(session.DecisionSend), nil
	}

	if !prompt.Interactive(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal; set session.decision to auto for unattended runs")
	}

	t := prompt.NewTerminal(os.Stdin, os.Stdout)
	if cfg.Session.Action == config.ActionMessage {
		t.Action = "Send message"
	} else {
		t.Action = "Send connection request"
	}
	return t, nil
}

func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, error) {
	logger.Info("Opening outreach ledger", "backend", cfg.Ledger.Backend, "path", cfg.Ledger.Path)

	var (
		l   *ledger.Ledger
		err error
	)
	switch cfg.Ledger.Backend {
	case config.BackendSQLite:
		var store *ledger.SQLiteStore
		store, err = ledger.OpenSQLite(cfg.Ledger.Path)
		if err == nil {
			if stats, serr := store.Stats(ctx, time.Now()); serr == nil {
				logger.Info("Ledger statistics",
					"total", stats.Total,
					"with_message", stats.WithPayload,
					"contacted_today", stats.ContactedToday,
				)
			}
			l, err = ledger.Open(ctx, store)
			if err != nil {
				_ = store.Close()
			}
		}
	default:
		l, err = ledger.Open(ctx, ledger.NewJSONStore(cfg.Ledger.Path))
	}

	if err == nil {
		logger.Info("Ledger loaded", "contacted", l.Len())
		return l, nil
	}

	if cfg.Ledger.OnLoadError == config.OnLoadErrorMemory {
		logger.Error("Ledger could not be loaded, continuing with an empty in-memory ledger",
			"path", cfg.Ledger.Path,
			"error", err,
		)
		return ledger.NewMemory(), nil
	}
	return nil, fmt.Errorf("failed to open ledger: %w", err)
}

// contactBudget returns the session's contact limit (0 for none) and false
// when today's limit is already used up.
func contactBudget(cfg *config.Config, l *ledger.Ledger, now time.Time) (int, bool) {
	limit := cfg.Session.MaxTargets

	if daily := cfg.Connection.DailyLimit; daily > 0 {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		left := daily - l.ContactedSince(midnight)
		if left <= 0 {
			return 0, false
		}
		logger.Info("Daily limit", "limit", daily, "remaining", left)
		if limit == 0 || left < limit {
			limit = left
		}
	}
	return limit, true
}

func collectCandidates(ctx context.Context, cfg *config.Config, l *ledger.Ledger, page *rod.Page, pace *browser.Pacer) ([]session.Candidate, error) {
	if len(cfg.Search.Profiles) > 0 {
		candidates := browser.FromURLs(cfg.Search.Profiles)
		logger.Info("Using configured profiles", "configured", len(cfg.Search.Profiles), "valid", len(candidates))
		return candidates, nil
	}

	candidates, err := browser.CollectProfiles(ctx, page, browser.Criteria{
		JobTitles: cfg.Search.JobTitles,
		Locations: cfg.Search.Locations,
		Keywords:  cfg.Search.Keywords,
		MaxPages:  cfg.Search.MaxPages,
	}, cfg.Search.MaxResults, l.HasContacted, pace)
	if err != nil {
		return nil, fmt.Errorf("profile search failed: %w", err)
	}
	return candidates, nil
}

func report(res *session.Result) {
	if res == nil {
		return
	}

	logger.Info("Outreach summary",
		"run_id", res.RunID,
		"contacted", res.Count(session.StateContacted),
		"skipped", res.Count(session.StateSkipped),
		"saved_for_later", res.Count(session.StateSavedForLater),
		"stopped_early", res.Stopped,
	)
	for _, c := range res.Saved() {
		logger.Info("Saved for later", "profile_url", c.TargetID, "name", c.Name)
	}
	for _, o := range res.Failed() {
		logger.Warn("Send failed", "profile_url", o.Candidate.TargetID, "attempts", o.Attempts, "error", o.Err)
	}
}

// displayWarningBanner reminds the operator what the tool does before it starts
func displayWarningBanner() {
	banner := `
╔════════════════════════════════════════════════════════════════════════════╗
║                                                                            ║
║                         LinkedIn Outreach Assistant                        ║
║                                                                            ║
║  Every candidate is checked against the outreach ledger first. People      ║
║  already contacted are never asked about again.                            ║
║                                                                            ║
║  Automated activity may break LinkedIn's Terms of Service. Use only on     ║
║  accounts you own and keep the daily limit low.                            ║
║                                                                            ║
╚════════════════════════════════════════════════════════════════════════════╝

Press Ctrl+C at any time to stop.

`
	fmt.Println(banner)

	fmt.Println("Starting in 3 seconds...")
	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(1 * time.Second)
	}
	fmt.Println()
}
