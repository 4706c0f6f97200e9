// Package control contains the controller state machines and the group that
// evaluates them. Controllers never read the wall clock and never write to
// their Outputs: every decision is a function of the time passed in, the
// controller's own state, and (for threshold controllers) the latest sample.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every construction-time validation error.
var ErrInvalid = errors.New("invalid controller configuration")

// State is the binary state of a simple output.
type State string

const (
	StateOff State = "OFF"
	StateOn  State = "ON"
)

// Direction is the regulation direction of a BidirectionalThreshold.
type Direction string

const (
	DirectionIdle       Direction = "IDLE"
	DirectionIncreasing Direction = "INCREASING"
	DirectionDecreasing Direction = "DECREASING"
)

// Kind tags the payload carried by a Value.
type Kind string

const (
	KindBinary    Kind = "binary"
	KindDirection Kind = "direction"
)

// Value is a desired actuation. Only the field selected by Kind is meaningful.
type Value struct {
	Kind      Kind
	On        bool
	Direction Direction
}

// Binary returns an on/off value.
func Binary(on bool) Value {
	return Value{Kind: KindBinary, On: on}
}

// Directional returns a direction value.
func Directional(d Direction) Value {
	return Value{Kind: KindDirection, Direction: d}
}

// String renders the value the way it appears on the wire ("ON", "DECREASING", ...).
func (v Value) String() string {
	switch v.Kind {
	case KindBinary:
		if v.On {
			return string(StateOn)
		}
		return string(StateOff)
	case KindDirection:
		return string(v.Direction)
	default:
		return "UNKNOWN"
	}
}

// ParseValue is the inverse of Value.String for the given kind.
func ParseValue(kind Kind, s string) (Value, error) {
	switch kind {
	case KindBinary:
		switch State(strings.ToUpper(s)) {
		case StateOn:
			return Binary(true), nil
		case StateOff:
			return Binary(false), nil
		}
	case KindDirection:
		switch d := Direction(strings.ToUpper(s)); d {
		case DirectionIdle, DirectionIncreasing, DirectionDecreasing:
			return Directional(d), nil
		}
	}
	return Value{}, fmt.Errorf("unknown %s value %q", kind, s)
}

// Message is one edge-triggered actuation decision.
type Message struct {
	ControllerID string
	Value        Value
	Timestamp    time.Time
	// Reading is the raw input sample behind a threshold decision. Empty for
	// timed outputs.
	Reading string
	// KeepAlive marks a re-assertion of a decision that did not change.
	KeepAlive bool
}

// Input is a sensor that yields a raw textual reading.
type Input interface {
	Read(ctx context.Context) (string, error)
}

// Output is an actuator.
type Output interface {
	Write(ctx context.Context, v Value) error
}

// InputReadError reports a failed or unparseable sample. The controller that
// returns it keeps its previous decision.
type InputReadError struct {
	ControllerID string
	Raw          string
	Err          error
}

func (e *InputReadError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("controller %s: read input (raw %q): %v", e.ControllerID, e.Raw, e.Err)
	}
	return fmt.Sprintf("controller %s: read input: %v", e.ControllerID, e.Err)
}

func (e *InputReadError) Unwrap() error {
	return e.Err
}

// TimeOfDay is an offset from local midnight.
type TimeOfDay time.Duration

const day = 24 * time.Hour

// At returns the time of day h:m:s.
func At(h, m, s int) TimeOfDay {
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// TimeOfDayOf returns the time-of-day component of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return At(h, m, s) + TimeOfDay(t.Nanosecond())
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("%w: time of day %q (want HH:MM or HH:MM:SS)", ErrInvalid, s)
}

// String formats the time of day as HH:MM:SS.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
