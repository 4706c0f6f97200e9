package control

import (
	"context"
	"fmt"
	"time"
)

// Controller is a stateful decision unit. The set of implementations is closed:
// TimedOutput, Threshold and BidirectionalThreshold.
//
// Successive calls to Evaluate on one controller must pass non-decreasing
// times. Hysteresis behaviour is undefined otherwise.
type Controller interface {
	// ID identifies the controller in emitted messages.
	ID() string

	// Evaluate returns a message when the decision changed, nil otherwise.
	// A non-nil error is an *InputReadError; the previous decision holds.
	Evaluate(ctx context.Context, now time.Time) (*Message, error)

	// Current returns the decision in force, stamped with now.
	Current(now time.Time) Message

	sealed()
}

// KindOf names the controller variant ("timed", "threshold", "bidirectional").
func KindOf(c Controller) string {
	switch c.(type) {
	case *TimedOutput:
		return "timed"
	case *Threshold:
		return "threshold"
	case *BidirectionalThreshold:
		return "bidirectional"
	default:
		panic(fmt.Sprintf("control: unknown controller type %T", c))
	}
}

// OutputsOf returns the Outputs owned by c.
func OutputsOf(c Controller) []Output {
	switch c := c.(type) {
	case *TimedOutput:
		return []Output{c.output}
	case *Threshold:
		return []Output{c.output}
	case *BidirectionalThreshold:
		return []Output{c.increase, c.decrease}
	default:
		panic(fmt.Sprintf("control: unknown controller type %T", c))
	}
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty controller id", ErrInvalid)
	}
	return nil
}

func invalid(id, format string, args ...any) error {
	return fmt.Errorf("%w: controller %s: %s", ErrInvalid, id, fmt.Sprintf(format, args...))
}
