package session

import (
	"context"
	"fmt"
)

// State is where a session, or a single target inside it, stands.
type State int

const (
	StatePending State = iota
	StateEvaluating
	StateSkipped
	StateSavedForLater
	StateContacted
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateEvaluating:
		return "evaluating"
	case StateSkipped:
		return "skipped"
	case StateSavedForLater:
		return "saved_for_later"
	case StateContacted:
		return "contacted"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decision is the operator's answer for one target. The zero value is not a
// valid decision, so an unset answer can never mean "send".
type Decision int

const (
	DecisionSend Decision = iota + 1
	DecisionSkip
	DecisionSaveForLater
)

func (d Decision) String() string {
	switch d {
	case DecisionSend:
		return "send"
	case DecisionSkip:
		return "skip"
	case DecisionSaveForLater:
		return "save_for_later"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Reason explains a Skipped outcome.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonInvalidTarget    Reason = "invalid_target"
	ReasonSeen             Reason = "seen_this_run"
	ReasonAlreadyContacted Reason = "already_contacted"
	ReasonOperator         Reason = "operator_skip"
	ReasonComposeFailed    Reason = "compose_failed"
	ReasonNoDecision       Reason = "no_decision"
	ReasonSendFailed       Reason = "send_failed"
)

// Candidate is a target surfaced by the driver.
type Candidate struct {
	TargetID string
	Name     string
	Headline string
	Detail   string
}

// Decider chooses what to do with a candidate. draft is the message that
// would be sent, empty when no Composer is configured.
type Decider interface {
	Decide(ctx context.Context, c Candidate, draft string) (Decision, error)
}

// Sender performs the outreach. A nil error is the only confirmation that
// the target was contacted.
type Sender interface {
	Send(ctx context.Context, c Candidate, message string) error
}

// Composer produces the message for a candidate.
type Composer interface {
	Compose(ctx context.Context, c Candidate) (string, error)
}

// DecideFunc adapts a function to Decider.
type DecideFunc func(ctx context.Context, c Candidate, draft string) (Decision, error)

func (f DecideFunc) Decide(ctx context.Context, c Candidate, draft string) (Decision, error) {
	return f(ctx, c, draft)
}

// SendFunc adapts a function to Sender.
type SendFunc func(ctx context.Context, c Candidate, message string) error

func (f SendFunc) Send(ctx context.Context, c Candidate, message string) error {
	return f(ctx, c, message)
}

// ComposeFunc adapts a function to Composer.
type ComposeFunc func(ctx context.Context, c Candidate) (string, error)

func (f ComposeFunc) Compose(ctx context.Context, c Candidate) (string, error) {
	return f(ctx, c)
}

// Outcome is the end state of one evaluated candidate.
type Outcome struct {
	Candidate Candidate
	State     State
	Reason    Reason
	Message   string
	Attempts  int
	Err       error
}

// Result collects the outcomes of one Run call.
type Result struct {
	RunID    string
	Outcomes []Outcome
	// Stopped is set when the run ended before the candidate list did.
	Stopped bool
}

// Count returns how many outcomes ended in state.
func (r *Result) Count(state State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Saved returns the candidates the operator kept for later.
func (r *Result) Saved() []Candidate {
	var out []Candidate
	for _, o := range r.Outcomes {
		if o.State == StateSavedForLater {
			out = append(out, o.Candidate)
		}
	}
	return out
}

// Failed returns the outcomes whose send did not go through.
func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Reason == ReasonSendFailed {
			out = append(out, o)
		}
	}
	return out
}
