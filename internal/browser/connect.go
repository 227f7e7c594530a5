package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/yourusername/linkedin-outreach/internal/content"
	"github.com/yourusername/linkedin-outreach/internal/logger"
	"github.com/yourusername/linkedin-outreach/internal/retry"
	"github.com/yourusername/linkedin-outreach/internal/session"
)

// MaxNoteLength is LinkedIn's limit for connection notes.
const MaxNoteLength = 300

var (
	// ErrNotConnectable means the profile offers no Connect action.
	ErrNotConnectable = errors.New("no connect option on profile")
	// ErrAlreadyPending means an invitation is already waiting on the profile.
	ErrAlreadyPending = errors.New("invitation already pending")
)

var (
	connectSelectors = []string{
		"main button[aria-label^='Invite'][aria-label$='to connect']",
		"button.pvs-profile-actions__action[aria-label*='connect']",
		"button[aria-label='Connect']",
	}
	moreSelectors = []string{
		"main button[aria-label='More actions']",
		"button.artdeco-dropdown__trigger--placement-bottom",
	}
	menuConnectSelectors = []string{
		"div[role='menu'] div[aria-label^='Invite'][aria-label$='to connect']",
		"div.artdeco-dropdown__content div[aria-label*='connect']",
	}
	pendingSelectors = []string{
		"main button[aria-label^='Pending']",
	}
	addNoteSelectors = []string{
		"button[aria-label='Add a note']",
	}
	noteFieldSelectors = []string{
		"textarea[name='message']",
		"textarea#custom-message",
	}
	sendInviteSelectors = []string{
		"button[aria-label='Send invitation']",
		"button[aria-label='Send now']",
		"button[aria-label='Send without a note']",
	}
)

// Connector sends connection requests. It implements session.Sender.
type Connector struct {
	page *rod.Page
	pace *Pacer
	// NoteLimit caps the note in runes. Zero means MaxNoteLength.
	NoteLimit int
}

// NewConnector sends requests from page.
func NewConnector(page *rod.Page, pace *Pacer) *Connector {
	return &Connector{page: page, pace: pace, NoteLimit: MaxNoteLength}
}

var _ session.Sender = (*Connector)(nil)

// Send opens the profile and sends an invitation, with note as the
// personal message when one is given.
func (c *Connector) Send(ctx context.Context, cand session.Candidate, note string) error {
	page := c.page.Context(ctx)
	logger.Info("Sending connection request", "profile_url", cand.TargetID)

	if err := open(ctx, page, c.pace, cand.TargetID); err != nil {
		return err
	}

	if _, err := findFirst(page, time.Second, pendingSelectors...); err == nil {
		return retry.Permanent(ErrAlreadyPending)
	}

	if err := c.clickConnect(ctx, page); err != nil {
		return err
	}
	if err := c.pace.Wait(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}

	if note != "" {
		if err := c.addNote(ctx, page, note); err != nil {
			return fmt.Errorf("failed to add note: %w", err)
		}
	}

	send, err := findFirst(page, 5*time.Second, sendInviteSelectors...)
	if err != nil {
		return fmt.Errorf("send button not found: %w", err)
	}
	if err := click(ctx, page, c.pace, send); err != nil {
		return fmt.Errorf("failed to click send button: %w", err)
	}

	logger.Info("Connection request sent", "profile_url", cand.TargetID)
	return nil
}

// clickConnect uses the profile's Connect button, or the entry in the More
// menu when the button is not shown directly.
func (c *Connector) clickConnect(ctx context.Context, page *rod.Page) error {
	if btn, err := findFirst(page, 3*time.Second, connectSelectors...); err == nil {
		logger.Debug("Using direct Connect button")
		return click(ctx, page, c.pace, btn)
	}

	more, err := findFirst(page, 3*time.Second, moreSelectors...)
	if err != nil {
		return retry.Permanent(ErrNotConnectable)
	}
	logger.Debug("Using More menu for Connect")
	if err := click(ctx, page, c.pace, more); err != nil {
		return fmt.Errorf("failed to open More menu: %w", err)
	}
	if err := c.pace.Wait(ctx, 500*time.Millisecond, time.Second); err != nil {
		return err
	}

	item, err := findFirst(page, 3*time.Second, menuConnectSelectors...)
	if err != nil {
		return retry.Permanent(ErrNotConnectable)
	}
	return click(ctx, page, c.pace, item)
}

func (c *Connector) addNote(ctx context.Context, page *rod.Page, note string) error {
	limit := c.NoteLimit
	if limit <= 0 || limit > MaxNoteLength {
		limit = MaxNoteLength
	}
	note = content.Truncate(note, limit)

	btn, err := findFirst(page, 5*time.Second, addNoteSelectors...)
	if err != nil {
		return err
	}
	if err := click(ctx, page, c.pace, btn); err != nil {
		return err
	}

	field, err := findFirst(page, 5*time.Second, noteFieldSelectors...)
	if err != nil {
		return err
	}
	return typeText(ctx, page, c.pace, field, note)
}
