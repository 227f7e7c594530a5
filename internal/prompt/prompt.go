// Package prompt asks the operator what to do with each candidate.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/yourusername/linkedin-outreach/internal/session"
)

// ErrInvalidDecision is returned by ParseDecision for an unknown answer.
var ErrInvalidDecision = errors.New("invalid decision")

// ParseDecision maps an operator answer to a decision.
func ParseDecision(token string) (session.Decision, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "y", "yes", "s", "send":
		return session.DecisionSend, nil
	case "n", "no", "skip":
		return session.DecisionSkip, nil
	case "l", "later", "save":
		return session.DecisionSaveForLater, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDecision, token)
	}
}

// Interactive reports whether fd is attached to a terminal.
func Interactive(fd int) bool {
	return term.IsTerminal(fd)
}

// Always returns a Decider that gives the same answer for every candidate.
func Always(d session.Decision) session.Decider {
	return session.DecideFunc(func(context.Context, session.Candidate, string) (session.Decision, error) {
		return d, nil
	})
}

// Terminal reads decisions line by line. An unrecognised answer is asked
// again; there is no default.
type Terminal struct {
	in    *bufio.Reader
	out   io.Writer
	lines chan line
	start sync.Once
	// Action names what a "send" does, e.g. "Send connection request".
	Action string
}

type line struct {
	text string
	err  error
}

// NewTerminal reads answers from in and writes questions to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		lines:  make(chan line),
		Action: "Send",
	}
}

// Decide shows the candidate and draft and waits for y, n or l.
func (t *Terminal) Decide(ctx context.Context, c session.Candidate, draft string) (session.Decision, error) {
	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "Name:     %s\n", orDash(c.Name))
	if c.Headline != "" {
		fmt.Fprintf(t.out, "Headline: %s\n", c.Headline)
	}
	if c.Detail != "" {
		fmt.Fprintf(t.out, "Detail:   %s\n", c.Detail)
	}
	fmt.Fprintf(t.out, "Profile:  %s\n", c.TargetID)
	if draft != "" {
		fmt.Fprintf(t.out, "Message:\n  %s\n", strings.ReplaceAll(draft, "\n", "\n  "))
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		fmt.Fprintf(t.out, "%s? [y]es / [n]o / [l]ater: ", t.Action)
		var (
			answer string
			err    error
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return 0, ctx.Err()
		case l, ok := <-t.next():
			answer, err = l.text, l.err
			if !ok {
				err = io.EOF
			}
		}
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(answer) == "") {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("failed to read decision: %w", io.ErrUnexpectedEOF)
			}
			return 0, fmt.Errorf("failed to read decision: %w", err)
		}

		d, perr := ParseDecision(answer)
		if perr == nil {
			return d, nil
		}
		fmt.Fprintln(t.out, "Please answer y, n or l.")
		if err != nil {
			// The input ended on an unusable answer.
			return 0, fmt.Errorf("failed to read decision: %w", io.ErrUnexpectedEOF)
		}
	}
}

// next returns the channel of input lines, starting the reader on first use.
// The reader stays blocked on input across a cancelled Decide, and the line
// it reads then goes to the next call.
func (t *Terminal) next() <-chan line {
	t.start.Do(func() {
		go func() {
			for {
				text, err := t.in.ReadString('\n')
				t.lines <- line{text: text, err: err}
				if err != nil {
					close(t.lines)
					return
				}
			}
		}()
	})
	return t.lines
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
