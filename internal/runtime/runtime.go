// Package runtime polls a control.Group at a fixed interval and publishes
// each tick's messages as one batch.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/sweeney/equilibrium/internal/control"
	"github.com/sweeney/equilibrium/internal/emit"
	"github.com/sweeney/equilibrium/internal/metrics"
)

// TickResult describes one evaluated tick.
type TickResult struct {
	At       time.Time
	Messages []control.Message
	Failures []*control.InputReadError
	// Published is true when Messages was handed to an emitter and accepted.
	Published  bool
	PublishErr error
	// ActuationErr holds failed local output writes. It never triggers a
	// retry of the remote publish.
	ActuationErr error
	Duration     time.Duration
}

// Observer is notified after every tick, on the loop goroutine.
type Observer interface {
	ObserveTick(TickResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(TickResult)

// ObserveTick calls f.
func (f ObserverFunc) ObserveTick(r TickResult) { f(r) }

// Runtime owns a Group. Ticks never overlap: evaluation and publication of
// one tick finish before the next begins.
type Runtime struct {
	group     *control.Group
	interval  time.Duration
	actuator  emit.Emitter
	emitter   emit.Emitter
	target    string
	publisher emit.Emitter
	retry     emit.RetryPolicy
	keepAlive time.Duration
	observers []Observer
	metrics   *metrics.Metrics
	log       logr.Logger
	now       func() time.Time

	mu            sync.Mutex
	lastKeepAlive time.Time
	running       bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithEmitter sets the publishing target. target names it in logs and errors.
func WithEmitter(e emit.Emitter, target string) Option {
	return func(r *Runtime) {
		r.emitter = e
		r.target = target
	}
}

// WithActuation applies every batch to local outputs through a before it is
// published. Its failures are reported in TickResult.ActuationErr and are
// not retried; the retry policy covers the remote emitter only.
func WithActuation(a emit.Emitter) Option {
	return func(r *Runtime) { r.actuator = a }
}

// WithRetry sets the policy applied to failed publishes. The default is
// emit.NoRetry. A batch the policy gives up on is dropped.
func WithRetry(p emit.RetryPolicy) Option {
	return func(r *Runtime) { r.retry = p }
}

// WithKeepAlive re-asserts the current decision of every controller that did
// not emit, once per d. Zero disables it.
func WithKeepAlive(d time.Duration) Option {
	return func(r *Runtime) { r.keepAlive = d }
}

// WithObserver adds a tick observer.
func WithObserver(o Observer) Option {
	return func(r *Runtime) { r.observers = append(r.observers, o) }
}

// WithMetrics sets the collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// New validates group and interval. A group that recorded construction
// errors is refused.
func New(group *control.Group, interval time.Duration, opts ...Option) (*Runtime, error) {
	if group == nil {
		return nil, fmt.Errorf("runtime: %w: nil group", control.ErrInvalid)
	}
	if err := group.Err(); err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("runtime: %w: poll interval must be positive, got %v", control.ErrInvalid, interval)
	}
	if group.Len() == 0 {
		return nil, fmt.Errorf("runtime: %w: group has no controllers", control.ErrInvalid)
	}
	r := &Runtime{
		group:    group,
		interval: interval,
		retry:    emit.NoRetry{},
		log:      logr.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.emitter != nil {
		r.bindLocked(r.emitter, r.target)
	}
	if r.keepAlive < 0 {
		return nil, fmt.Errorf("runtime: %w: negative keep-alive %v", control.ErrInvalid, r.keepAlive)
	}
	return r, nil
}

// Interval returns the poll interval.
func (r *Runtime) Interval() time.Duration { return r.interval }

// HasEmitter reports whether a publishing target is bound.
func (r *Runtime) HasEmitter() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitter != nil
}

// Tick evaluates the group at now and publishes the resulting batch if it is
// not empty. A publish failure is reported in the result and never stops
// later ticks.
func (r *Runtime) Tick(ctx context.Context, now time.Time) TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickLocked(ctx, now)
}

func (r *Runtime) tickLocked(ctx context.Context, now time.Time) TickResult {
	started := time.Now()
	msgs, failures := r.group.Evaluate(ctx, now)
	for _, f := range failures {
		r.metrics.InputError(f.ControllerID)
	}
	msgs = append(msgs, r.keepAliveLocked(now, msgs)...)

	res := TickResult{At: now, Messages: msgs, Failures: failures}
	for _, m := range msgs {
		if !m.KeepAlive {
			r.log.Info("state changed", "controller", m.ControllerID, "value", m.Value.String(), "reading", m.Reading)
		}
		r.metrics.Emitted(m.ControllerID, level(m.Value))
	}

	if len(msgs) > 0 && r.actuator != nil {
		if err := r.actuator.Publish(ctx, msgs); err != nil {
			res.ActuationErr = err
			r.metrics.ActuationFailure()
			r.log.Error(err, "actuation failed", "messages", len(msgs))
		}
	}
	if len(msgs) > 0 && r.emitter != nil {
		if err := r.publisher.Publish(ctx, msgs); err != nil {
			res.PublishErr = err
			r.metrics.PublishFailure()
			r.log.Error(err, "batch dropped", "messages", len(msgs))
		} else {
			res.Published = true
		}
	}

	res.Duration = time.Since(started)
	r.metrics.Tick(res.Duration)
	for _, o := range r.observers {
		o.ObserveTick(res)
	}
	return res
}

func (r *Runtime) bindLocked(e emit.Emitter, target string) {
	r.emitter = e
	r.target = target
	r.publisher = emit.WithRetry(e, r.retry, target, r.log)
}

// keepAliveLocked returns Current messages for controllers absent from
// emitted when a keep-alive period has passed.
func (r *Runtime) keepAliveLocked(now time.Time, emitted []control.Message) []control.Message {
	if r.keepAlive <= 0 {
		return nil
	}
	if r.lastKeepAlive.IsZero() {
		r.lastKeepAlive = now
		return nil
	}
	if now.Sub(r.lastKeepAlive) < r.keepAlive {
		return nil
	}
	r.lastKeepAlive = now

	seen := make(map[string]bool, len(emitted))
	for _, m := range emitted {
		seen[m.ControllerID] = true
	}
	var out []control.Message
	for _, m := range r.group.Current(now) {
		if seen[m.ControllerID] {
			continue
		}
		m.KeepAlive = true
		out = append(out, m)
	}
	return out
}

func level(v control.Value) float64 {
	switch v.Kind {
	case control.KindDirection:
		switch v.Direction {
		case control.DirectionIncreasing:
			return 1
		case control.DirectionDecreasing:
			return -1
		}
		return 0
	default:
		if v.On {
			return 1
		}
		return 0
	}
}
