package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("element not found")

func TestDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{name: "first failure waits base", policy: Policy{BaseDelay: time.Second}, attempt: 1, want: time.Second},
		{name: "second failure doubles", policy: Policy{BaseDelay: time.Second}, attempt: 2, want: 2 * time.Second},
		{name: "third failure quadruples", policy: Policy{BaseDelay: time.Second}, attempt: 3, want: 4 * time.Second},
		{name: "capped", policy: Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}, attempt: 5, want: 3 * time.Second},
		{name: "zero base", policy: Policy{}, attempt: 4, want: 0},
		{name: "non-positive attempt", policy: Policy{BaseDelay: time.Second}, attempt: 0, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delay(tt.attempt))
		})
	}
}

func TestDelayDoesNotOverflow(t *testing.T) {
	p := Policy{BaseDelay: time.Second}

	assert.Positive(t, p.Delay(500))
	assert.GreaterOrEqual(t, p.Delay(500), p.Delay(40))
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	p := Policy{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		OnRetry:   func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
	}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsAtBudget(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 2, BaseDelay: time.Millisecond}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, calls)
}

func TestDoPermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 5, BaseDelay: time.Millisecond}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.Equal(t, errFlaky, err)
	assert.Equal(t, 1, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0

	err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{Attempts: 5, BaseDelay: time.Hour}

	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDoCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Once.Do(ctx, func(context.Context) error {
		t.Fatal("op must not run")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
