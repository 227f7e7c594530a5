// Package session runs one outreach pass over a list of candidates.
//
// Every candidate goes Pending → Evaluating → Skipped | SavedForLater |
// Contacted. Candidates already seen during this session or already in the
// ledger are skipped without asking the Decider. Only a Sender success leads
// to a ledger record. The session is Done once its candidates run out or the
// maximum number of contacts is reached.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/linkedin-outreach/internal/dedup"
	"github.com/yourusername/linkedin-outreach/internal/ledger"
	"github.com/yourusername/linkedin-outreach/internal/logger"
	"github.com/yourusername/linkedin-outreach/internal/retry"
)

// ErrLimitReached is returned by Evaluate once the session has contacted
// MaxContacts targets.
var ErrLimitReached = errors.New("outreach limit reached")

// Options tunes a Session.
type Options struct {
	// MaxContacts stops the session after this many successful sends. Zero means no limit.
	MaxContacts int
	// Retry bounds Sender calls for one target. The zero value sends once.
	Retry retry.Policy
	// AbortOnPersistError stops the run when a confirmed send cannot be written
	// to the ledger. Otherwise the session carries on with the record held in memory.
	AbortOnPersistError bool
	// Composer drafts the message shown to the Decider and passed to the Sender.
	Composer Composer
	// Logger defaults to the package logger.
	Logger *zap.SugaredLogger
	// OnOutcome is called after every evaluated candidate.
	OnOutcome func(Outcome)
}

// Session owns the per-run de-duplication set and consults the ledger.
// It is meant to be driven by one goroutine.
type Session struct {
	id      string
	ledger  *ledger.Ledger
	seen    *dedup.Set
	decider Decider
	sender  Sender
	opts    Options
	log     *zap.SugaredLogger

	state     State
	contacted int
}

// New creates a session with an empty de-duplication set.
func New(l *ledger.Ledger, decider Decider, sender Sender, opts Options) (*Session, error) {
	if l == nil {
		return nil, errors.New("session requires a ledger")
	}
	if decider == nil {
		return nil, errors.New("session requires a decider")
	}
	if sender == nil {
		return nil, errors.New("session requires a sender")
	}

	id := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Session{
		id:      id,
		ledger:  l,
		seen:    dedup.New(),
		decider: decider,
		sender:  sender,
		opts:    opts,
		log:     log.With("run_id", id),
		state:   StatePending,
	}, nil
}

// ID returns the run id used in logs and results.
func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() State { return s.state }

// Contacted returns the number of successful sends so far.
func (s *Session) Contacted() int { return s.contacted }

// Remaining returns how many sends are left before the limit, or -1 when unlimited.
func (s *Session) Remaining() int {
	if s.opts.MaxContacts <= 0 {
		return -1
	}
	if r := s.opts.MaxContacts - s.contacted; r > 0 {
		return r
	}
	return 0
}

// MarkSeen records that id was surfaced during this run.
func (s *Session) MarkSeen(id string) {
	if norm, err := ledger.Normalize(id); err == nil {
		s.seen.MarkSeen(norm)
	}
}

// WasSeen reports whether id was already surfaced during this run.
func (s *Session) WasSeen(id string) bool {
	norm, err := ledger.Normalize(id)
	if err != nil {
		return false
	}
	return s.seen.WasSeen(norm)
}

// ShouldSkip reports whether id would be skipped without asking the decider.
func (s *Session) ShouldSkip(id string) bool {
	return s.WasSeen(id) || s.ledger.HasContacted(id)
}

func (s *Session) limitReached() bool {
	return s.opts.MaxContacts > 0 && s.contacted >= s.opts.MaxContacts
}

// Run evaluates candidates in order. It may be called again on the same
// session with a fresh list; targets from earlier calls are skipped.
//
// A cancelled context stops the run between candidates and is returned with
// the partial result. Decider failures and, with AbortOnPersistError,
// persistence failures also end the run with an error.
func (s *Session) Run(ctx context.Context, candidates []Candidate) (*Result, error) {
	res := &Result{RunID: s.id}

	if s.limitReached() {
		s.state = StateDone
		res.Stopped = len(candidates) > 0
		return res, nil
	}

	s.state = StatePending
	s.log.Infow("Starting outreach pass", "candidates", len(candidates), "remaining", s.Remaining())

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			s.state = StateDone
			res.Stopped = true
			s.log.Infow("Outreach pass cancelled", "evaluated", i, "candidates", len(candidates))
			return res, err
		}

		out, err := s.Evaluate(ctx, c)
		if errors.Is(err, ErrLimitReached) {
			res.Stopped = true
			break
		}
		res.Outcomes = append(res.Outcomes, out)
		if err != nil {
			s.state = StateDone
			res.Stopped = true
			return res, err
		}

		if s.limitReached() {
			res.Stopped = i < len(candidates)-1
			s.log.Infow("Outreach limit reached", "limit", s.opts.MaxContacts)
			break
		}
	}

	s.state = StateDone
	s.log.Infow("Outreach pass completed",
		"contacted", res.Count(StateContacted),
		"skipped", res.Count(StateSkipped),
		"saved_for_later", res.Count(StateSavedForLater),
	)
	return res, nil
}

// Evaluate runs a single candidate through the state machine.
func (s *Session) Evaluate(ctx context.Context, c Candidate) (Outcome, error) {
	if s.limitReached() {
		s.state = StateDone
		return Outcome{Candidate: c, State: StatePending}, ErrLimitReached
	}
	s.state = StateEvaluating

	id, err := ledger.Normalize(c.TargetID)
	if err != nil {
		return s.finish(Outcome{Candidate: c, State: StateSkipped, Reason: ReasonInvalidTarget, Err: err}), nil
	}
	c.TargetID = id

	if s.seen.WasSeen(id) {
		return s.finish(Outcome{Candidate: c, State: StateSkipped, Reason: ReasonSeen}), nil
	}
	s.seen.MarkSeen(id)

	if s.ledger.HasContacted(id) {
		return s.finish(Outcome{Candidate: c, State: StateSkipped, Reason: ReasonAlreadyContacted}), nil
	}

	var draft string
	if s.opts.Composer != nil {
		draft, err = s.opts.Composer.Compose(ctx, c)
		if err != nil {
			return s.finish(Outcome{Candidate: c, State: StateSkipped, Reason: ReasonComposeFailed, Err: err}), nil
		}
	}

	decision, err := s.decider.Decide(ctx, c, draft)
	if err != nil {
		out := s.finish(Outcome{Candidate: c, State: StateSkipped, Reason: ReasonNoDecision, Err: err})
		return out, fmt.Errorf("failed to get decision for %s: %w", id, err)
	}

	switch decision {
	case DecisionSend:
		return s.send(ctx, c, draft)
	case DecisionSkip:
		return s.finish(Outcome{Candidate: c, State: StateSkipped, Reason: ReasonOperator}), nil
	case DecisionSaveForLater:
		return s.finish(Outcome{Candidate: c, State: StateSavedForLater}), nil
	default:
		err := fmt.Errorf("unknown decision %v", decision)
		out := s.finish(Outcome{Candidate: c, State: StateSkipped, Reason: ReasonNoDecision, Err: err})
		return out, err
	}
}

func (s *Session) send(ctx context.Context, c Candidate, message string) (Outcome, error) {
	attempts := 0
	policy := s.opts.Retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			s.log.Warnw("Send failed, retrying...",
				"target_id", c.TargetID,
				"attempt", attempt,
				"max_attempts", policy.Attempts,
				"backoff", wait,
				"error", err,
			)
		}
	}

	err := policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		return s.sender.Send(ctx, c, message)
	})
	if err != nil {
		return s.finish(Outcome{
			Candidate: c,
			State:     StateSkipped,
			Reason:    ReasonSendFailed,
			Attempts:  attempts,
			Err:       err,
		}), nil
	}

	s.contacted++
	out := Outcome{Candidate: c, State: StateContacted, Message: message, Attempts: attempts}

	// The send is confirmed; record it even if the run is being cancelled.
	if err := s.ledger.RecordContacted(context.WithoutCancel(ctx), c.TargetID, message); err != nil {
		out.Err = err
		if s.opts.AbortOnPersistError {
			s.finish(out)
			return out, fmt.Errorf("failed to record contact with %s: %w", c.TargetID, err)
		}
		s.log.Errorw("Failed to persist contact, keeping it in memory", "target_id", c.TargetID, "error", err)
	}

	return s.finish(out), nil
}

func (s *Session) finish(out Outcome) Outcome {
	s.state = out.State

	fields := []interface{}{"target_id", out.Candidate.TargetID, "state", out.State.String()}
	if out.Reason != ReasonNone {
		fields = append(fields, "reason", string(out.Reason))
	}
	if out.Attempts > 0 {
		fields = append(fields, "attempts", out.Attempts)
	}
	if out.Err != nil {
		fields = append(fields, "error", out.Err)
	}

	switch {
	case out.State == StateContacted:
		s.log.Infow("Target contacted", fields...)
	case out.Reason == ReasonSendFailed:
		s.log.Warnw("Target skipped after failed send", fields...)
	default:
		s.log.Debugw("Target evaluated", fields...)
	}

	if s.opts.OnOutcome != nil {
		s.opts.OnOutcome(out)
	}
	return out
}
