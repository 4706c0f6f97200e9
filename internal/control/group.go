package control

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-logr/logr"
)

// Group evaluates controllers in insertion order. Once added, a controller
// belongs to the group.
type Group struct {
	controllers []Controller
	ids         map[string]struct{}
	owners      map[Output]string
	err         error
	log         logr.Logger
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{
		ids:    make(map[string]struct{}),
		owners: make(map[Output]string),
		log:    logr.Discard(),
	}
}

// WithLogger sets the logger used to report isolated controller failures.
func (g *Group) WithLogger(log logr.Logger) *Group {
	g.log = log
	return g
}

// Add appends c and returns the group for chaining. A duplicate id, an
// Output already owned by another controller, or an Output whose type is not
// comparable (ownership cannot be proven) is recorded in Err and c is not
// added.
func (g *Group) Add(c Controller) *Group {
	if c == nil {
		g.fail(fmt.Errorf("%w: nil controller", ErrInvalid))
		return g
	}
	if _, dup := g.ids[c.ID()]; dup {
		g.fail(fmt.Errorf("%w: duplicate controller id %q", ErrInvalid, c.ID()))
		return g
	}
	outs := OutputsOf(c)
	seen := make(map[Output]struct{}, len(outs))
	for _, o := range outs {
		if !reflect.TypeOf(o).Comparable() {
			g.fail(fmt.Errorf("%w: controller %q: output type %T cannot be checked for ownership, use a pointer", ErrInvalid, c.ID(), o))
			return g
		}
		if owner, taken := g.owners[o]; taken {
			g.fail(fmt.Errorf("%w: controller %q: output already owned by %q", ErrInvalid, c.ID(), owner))
			return g
		}
		if _, twice := seen[o]; twice {
			g.fail(fmt.Errorf("%w: controller %q: same output bound twice", ErrInvalid, c.ID()))
			return g
		}
		seen[o] = struct{}{}
	}
	for o := range seen {
		g.owners[o] = c.ID()
	}
	g.ids[c.ID()] = struct{}{}
	g.controllers = append(g.controllers, c)
	return g
}

func (g *Group) fail(err error) {
	g.err = errors.Join(g.err, err)
}

// Err returns the construction errors collected by Add.
func (g *Group) Err() error {
	return g.err
}

// Len returns the number of controllers.
func (g *Group) Len() int {
	return len(g.controllers)
}

// Controllers returns the controllers in evaluation order.
func (g *Group) Controllers() []Controller {
	out := make([]Controller, len(g.controllers))
	copy(out, g.controllers)
	return out
}

// Lookup returns the controller with the given id.
func (g *Group) Lookup(id string) (Controller, bool) {
	for _, c := range g.controllers {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Evaluate calls every controller in insertion order and returns the emitted
// messages in that order. A failing controller is logged and skipped; the
// rest of the group is still evaluated.
func (g *Group) Evaluate(ctx context.Context, now time.Time) ([]Message, []*InputReadError) {
	var (
		msgs     []Message
		failures []*InputReadError
	)
	for _, c := range g.controllers {
		msg, err := c.Evaluate(ctx, now)
		if err != nil {
			var rerr *InputReadError
			if !errors.As(err, &rerr) {
				rerr = &InputReadError{ControllerID: c.ID(), Err: err}
			}
			g.log.Info("input read failed, holding last decision", "controller", c.ID(), "error", rerr.Err)
			failures = append(failures, rerr)
			continue
		}
		if msg != nil {
			g.log.V(1).Info("decision changed", "controller", c.ID(), "value", msg.Value.String(), "reading", msg.Reading)
			msgs = append(msgs, *msg)
		}
	}
	return msgs, failures
}

// Current returns the decision in force for every controller, in order.
func (g *Group) Current(now time.Time) []Message {
	out := make([]Message, 0, len(g.controllers))
	for _, c := range g.controllers {
		out = append(out, c.Current(now))
	}
	return out
}
