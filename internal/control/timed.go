package control

import (
	"context"
	"time"
)

// TimedOutput turns its output on at the same time every day and off again
// after a fixed duration. Typical uses: grow lights, aeration pumps, feeders.
type TimedOutput struct {
	id       string
	output   Output
	start    TimeOfDay
	duration time.Duration
	state    State
}

// NewTimedOutput creates a TimedOutput that is on during
// [start, start+duration) each day. The window may cross midnight.
// The duration must be positive and at most 24h.
func NewTimedOutput(id string, output Output, start TimeOfDay, duration time.Duration) (*TimedOutput, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if output == nil {
		return nil, invalid(id, "nil output")
	}
	if start < 0 || time.Duration(start) >= day {
		return nil, invalid(id, "start %v outside a day", time.Duration(start))
	}
	if duration <= 0 || duration > day {
		return nil, invalid(id, "duration %v must be in (0, 24h]", duration)
	}
	return &TimedOutput{
		id:       id,
		output:   output,
		start:    start,
		duration: duration,
		state:    StateOff,
	}, nil
}

func (t *TimedOutput) sealed() {}

// ID returns the controller id.
func (t *TimedOutput) ID() string { return t.id }

// Output returns the output this controller drives.
func (t *TimedOutput) Output() Output { return t.output }

// Window returns the configured start and duration.
func (t *TimedOutput) Window() (TimeOfDay, time.Duration) { return t.start, t.duration }

// State returns the current decision.
func (t *TimedOutput) State() State { return t.state }

// Active reports whether now falls inside the daily window.
func (t *TimedOutput) Active(now time.Time) bool {
	tod := time.Duration(TimeOfDayOf(now))
	start := time.Duration(t.start)
	end := start + t.duration
	if end <= day {
		return tod >= start && tod < end
	}
	return tod >= start || tod < end-day
}

// Evaluate never fails; the error is always nil.
func (t *TimedOutput) Evaluate(_ context.Context, now time.Time) (*Message, error) {
	target := StateOff
	if t.Active(now) {
		target = StateOn
	}
	if target == t.state {
		return nil, nil
	}
	t.state = target
	msg := t.Current(now)
	return &msg, nil
}

// Current returns the decision in force.
func (t *TimedOutput) Current(now time.Time) Message {
	return Message{
		ControllerID: t.id,
		Value:        Binary(t.state == StateOn),
		Timestamp:    now,
	}
}
