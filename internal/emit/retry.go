package emit

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/sweeney/equilibrium/internal/control"
)

// RetryPolicy decides whether a failed publish is tried again.
type RetryPolicy interface {
	// Next returns the delay before retry number attempt (1-based) and
	// false when no further attempt should be made.
	Next(attempt int) (time.Duration, bool)
}

// NoRetry gives up after the first failure.
type NoRetry struct{}

// Next always returns false.
func (NoRetry) Next(int) (time.Duration, bool) { return 0, false }

// Backoff retries with exponentially growing delays.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps the delay. Zero means no cap.
	Max time.Duration
	// Multiplier grows the delay between retries. Values below 1 are treated as 1.
	Multiplier float64
	// Retries is the number of retries after the first attempt.
	Retries int
}

// Next implements RetryPolicy.
func (b Backoff) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > b.Retries {
		return 0, false
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		d *= mult
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max, true
		}
	}
	if b.Max > 0 && time.Duration(d) > b.Max {
		return b.Max, true
	}
	return time.Duration(d), true
}

// Retrying wraps an Emitter with a RetryPolicy. When the policy gives up the
// batch is dropped and an *EmitError is returned.
type Retrying struct {
	next   Emitter
	policy RetryPolicy
	target string
	log    logr.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps e. target names the destination in errors and logs.
func WithRetry(e Emitter, policy RetryPolicy, target string, log logr.Logger) *Retrying {
	if policy == nil {
		policy = NoRetry{}
	}
	return &Retrying{next: e, policy: policy, target: target, log: log, sleep: sleep}
}

// Publish implements Emitter.
func (r *Retrying) Publish(ctx context.Context, msgs []control.Message) error {
	for attempt := 1; ; attempt++ {
		err := r.next.Publish(ctx, msgs)
		if err == nil {
			return nil
		}
		delay, again := r.policy.Next(attempt)
		if !again {
			return &EmitError{Target: r.target, Attempts: attempt, Err: err}
		}
		r.log.Info("publish failed, retrying", "target", r.target, "attempt", attempt, "delay", delay, "error", err)
		if serr := r.sleep(ctx, delay); serr != nil {
			return &EmitError{Target: r.target, Attempts: attempt, Err: err}
		}
	}
}

// Close closes the wrapped emitter if it is a Closer.
func (r *Retrying) Close() error {
	if c, ok := r.next.(Closer); ok {
		return c.Close()
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
