// Package actuate delivers control messages to the Outputs owned by the
// controllers that emitted them. An Actuator is an emitter, so a runtime
// drives its hardware by publishing to it.
package actuate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/sweeney/equilibrium/internal/control"
)

// OutputWriteError reports a failed write to one output.
type OutputWriteError struct {
	ControllerID string
	Output       string
	Err          error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("controller %s: write %s output: %v", e.ControllerID, e.Output, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// binding is one output slot of a controller with the last level written.
type binding struct {
	role   string
	output control.Output
	known  bool
	level  bool
}

// Actuator applies messages to outputs. It is safe for concurrent use.
type Actuator struct {
	log      logr.Logger
	bindings map[string][]*binding

	mu sync.Mutex
}

// Option configures an Actuator.
type Option func(*Actuator)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(a *Actuator) { a.log = log }
}

// New binds every controller in group to its outputs.
func New(group *control.Group, opts ...Option) *Actuator {
	a := &Actuator{
		log:      logr.Discard(),
		bindings: make(map[string][]*binding),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, c := range group.Controllers() {
		a.bindings[c.ID()] = bindingsOf(c)
	}
	return a
}

func bindingsOf(c control.Controller) []*binding {
	switch c := c.(type) {
	case *control.TimedOutput:
		return []*binding{{role: "main", output: c.Output()}}
	case *control.Threshold:
		return []*binding{{role: "main", output: c.Output()}}
	case *control.BidirectionalThreshold:
		inc, dec := c.Outputs()
		return []*binding{{role: "increase", output: inc}, {role: "decrease", output: dec}}
	default:
		panic(fmt.Sprintf("actuate: unknown controller type %T", c))
	}
}

// levels maps a value to the binary level of each binding slot.
func levels(v control.Value, n int) ([]bool, error) {
	switch v.Kind {
	case control.KindBinary:
		if n != 1 {
			return nil, fmt.Errorf("binary value for a controller with %d outputs", n)
		}
		return []bool{v.On}, nil
	case control.KindDirection:
		if n != 2 {
			return nil, fmt.Errorf("direction value for a controller with %d outputs", n)
		}
		switch v.Direction {
		case control.DirectionIncreasing:
			return []bool{true, false}, nil
		case control.DirectionDecreasing:
			return []bool{false, true}, nil
		case control.DirectionIdle:
			return []bool{false, false}, nil
		}
		return nil, fmt.Errorf("unknown direction %q", v.Direction)
	default:
		return nil, fmt.Errorf("unsupported value kind %q", v.Kind)
	}
}

// Apply writes one message to its controller's outputs. Outputs already at
// the requested level are not written again. Writes are switched off before
// on so both directions of a bidirectional pair are never active together.
func (a *Actuator) Apply(ctx context.Context, msg control.Message) error {
	bs, ok := a.bindings[msg.ControllerID]
	if !ok {
		return fmt.Errorf("actuate: unknown controller %q", msg.ControllerID)
	}
	want, err := levels(msg.Value, len(bs))
	if err != nil {
		return fmt.Errorf("actuate: controller %s: %w", msg.ControllerID, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, pass := range []bool{false, true} {
		for i, b := range bs {
			if want[i] != pass {
				continue
			}
			if b.known && b.level == want[i] {
				continue
			}
			if err := b.output.Write(ctx, control.Binary(want[i])); err != nil {
				b.known = false
				errs = append(errs, &OutputWriteError{ControllerID: msg.ControllerID, Output: b.role, Err: err})
				continue
			}
			b.known, b.level = true, want[i]
			a.log.V(1).Info("output written", "controller", msg.ControllerID, "output", b.role, "on", want[i])
		}
	}
	return errors.Join(errs...)
}

// Publish applies every message in order. It satisfies emit.Emitter.
func (a *Actuator) Publish(ctx context.Context, msgs []control.Message) error {
	var errs []error
	for _, m := range msgs {
		if err := a.Apply(ctx, m); err != nil {
			a.log.Info("actuation failed", "controller", m.ControllerID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sync writes each message to its controller's outputs even when the cached
// level already matches, so outputs left in any state by a previous process
// are driven to the decision in force. Call it with Group.Current before the
// first tick.
func (a *Actuator) Sync(ctx context.Context, msgs []control.Message) error {
	a.mu.Lock()
	for _, m := range msgs {
		for _, b := range a.bindings[m.ControllerID] {
			b.known = false
		}
	}
	a.mu.Unlock()
	return a.Publish(ctx, msgs)
}

// Release drives every bound output off. Used on shutdown.
func (a *Actuator) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for id, bs := range a.bindings {
		for _, b := range bs {
			if err := b.output.Write(ctx, control.Binary(false)); err != nil {
				b.known = false
				errs = append(errs, &OutputWriteError{ControllerID: id, Output: b.role, Err: err})
				continue
			}
			b.known, b.level = true, false
		}
	}
	return errors.Join(errs...)
}
