package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/yourusername/linkedin-outreach/internal/logger"
	"github.com/yourusername/linkedin-outreach/internal/retry"
	"github.com/yourusername/linkedin-outreach/internal/session"
)

// ErrNotMessageable means the profile has no Message button, usually because
// the person is not a connection.
var ErrNotMessageable = errors.New("no message option on profile")

var (
	messageButtonSelectors = []string{
		"main button[aria-label^='Message']",
		".pvs-profile-actions__action[aria-label^='Message']",
	}
	messageFieldSelectors = []string{
		"div[role='textbox'][aria-label*='Write a message']",
		"div.msg-form__contenteditable",
	}
	messageSendSelectors = []string{
		"button.msg-form__send-button",
		"button[type='submit'][aria-label*='Send']",
	}
)

// Messenger sends direct messages to connections. It implements session.Sender.
type Messenger struct {
	page *rod.Page
	pace *Pacer
}

// NewMessenger sends messages from page.
func NewMessenger(page *rod.Page, pace *Pacer) *Messenger {
	return &Messenger{page: page, pace: pace}
}

var _ session.Sender = (*Messenger)(nil)

// Send opens the profile's message thread and sends message.
func (m *Messenger) Send(ctx context.Context, cand session.Candidate, message string) error {
	if message == "" {
		return retry.Permanent(errors.New("empty message"))
	}

	page := m.page.Context(ctx)
	logger.Info("Sending message", "profile_url", cand.TargetID)

	if err := open(ctx, page, m.pace, cand.TargetID); err != nil {
		return err
	}

	btn, err := findFirst(page, 3*time.Second, messageButtonSelectors...)
	if err != nil {
		return retry.Permanent(ErrNotMessageable)
	}
	if err := click(ctx, page, m.pace, btn); err != nil {
		return fmt.Errorf("failed to click message button: %w", err)
	}
	if err := m.pace.Wait(ctx, 2*time.Second, 3*time.Second); err != nil {
		return err
	}

	field, err := findFirst(page, 5*time.Second, messageFieldSelectors...)
	if err != nil {
		return fmt.Errorf("message field not found: %w", err)
	}
	if err := typeText(ctx, page, m.pace, field, message); err != nil {
		return fmt.Errorf("failed to type message: %w", err)
	}

	send, err := findFirst(page, 5*time.Second, messageSendSelectors...)
	if err != nil {
		return fmt.Errorf("send button not found: %w", err)
	}
	if err := click(ctx, page, m.pace, send); err != nil {
		return fmt.Errorf("failed to click send button: %w", err)
	}

	logger.Info("Message sent", "profile_url", cand.TargetID)
	return nil
}
