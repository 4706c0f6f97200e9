package control

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
)

// sampler gates input reads to at most one per interval.
type sampler struct {
	interval   time.Duration
	lastSample time.Time
	sampled    bool
	firstAt    time.Time
}

// due reports whether a sample may be taken at now.
func (s *sampler) due(now time.Time) bool {
	if !s.sampled {
		return !now.Before(s.firstAt)
	}
	return now.Sub(s.lastSample) >= s.interval
}

// mark records a successful sample. lastSample only moves forward.
func (s *sampler) mark(now time.Time) {
	if s.sampled && now.Before(s.lastSample) {
		return
	}
	s.lastSample = now
	s.sampled = true
}

// LastSample returns the time of the last successful sample.
func (s *sampler) LastSample() (time.Time, bool) {
	return s.lastSample, s.sampled
}

func readNumber(ctx context.Context, id string, in Input) (float64, string, error) {
	raw, err := in.Read(ctx)
	if err != nil {
		return 0, "", &InputReadError{ControllerID: id, Err: err}
	}
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, raw, &InputReadError{ControllerID: id, Raw: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, raw, &InputReadError{ControllerID: id, Raw: raw, Err: strconv.ErrRange}
	}
	return v, raw, nil
}

// ThresholdOption configures a Threshold.
type ThresholdOption func(*Threshold)

// Inverted switches the output on when the reading is above the limit
// instead of below it (cooling rather than heating).
func Inverted() ThresholdOption {
	return func(t *Threshold) { t.inverted = true }
}

// WithFirstSample defers the first sample until at.
func WithFirstSample(at time.Time) ThresholdOption {
	return func(t *Threshold) { t.gate.firstAt = at }
}

// Threshold activates its output while the sampled input is below a limit.
type Threshold struct {
	id       string
	input    Input
	output   Output
	limit    float64
	inverted bool
	gate     sampler
	state    State
	reading  string
}

// NewThreshold creates a Threshold that samples input at most once per
// interval and drives output on while the reading is below limit.
func NewThreshold(id string, input Input, output Output, limit float64, interval time.Duration, opts ...ThresholdOption) (*Threshold, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if input == nil || output == nil {
		return nil, invalid(id, "nil input or output")
	}
	if math.IsNaN(limit) || math.IsInf(limit, 0) {
		return nil, invalid(id, "limit %v is not finite", limit)
	}
	if interval <= 0 {
		return nil, invalid(id, "sample interval %v must be positive", interval)
	}
	t := &Threshold{
		id:     id,
		input:  input,
		output: output,
		limit:  limit,
		gate:   sampler{interval: interval},
		state:  StateOff,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Threshold) sealed() {}

// ID returns the controller id.
func (t *Threshold) ID() string { return t.id }

// Output returns the output this controller drives.
func (t *Threshold) Output() Output { return t.output }

// Limit returns the activation limit.
func (t *Threshold) Limit() float64 { return t.limit }

// SetLimit changes the activation limit. It takes effect on the next sample.
// A limit that is not finite is refused and the current one kept.
func (t *Threshold) SetLimit(limit float64) error {
	if math.IsNaN(limit) || math.IsInf(limit, 0) {
		return invalid(t.id, "limit %v is not finite", limit)
	}
	t.limit = limit
	return nil
}

// IsInverted reports whether the Inverted option is set.
func (t *Threshold) IsInverted() bool { return t.inverted }

// SampleInterval returns the minimum time between two samples.
func (t *Threshold) SampleInterval() time.Duration { return t.gate.interval }

// LastSample returns the time of the last successful sample.
func (t *Threshold) LastSample() (time.Time, bool) { return t.gate.LastSample() }

// State returns the current decision.
func (t *Threshold) State() State { return t.state }

// Evaluate samples the input when the sample interval has elapsed and emits
// a message when the decision flips.
func (t *Threshold) Evaluate(ctx context.Context, now time.Time) (*Message, error) {
	if !t.gate.due(now) {
		return nil, nil
	}
	v, raw, err := readNumber(ctx, t.id, t.input)
	if err != nil {
		return nil, err
	}
	t.gate.mark(now)
	t.reading = raw

	on := v < t.limit
	if t.inverted {
		on = v > t.limit
	}
	target := StateOff
	if on {
		target = StateOn
	}
	if target == t.state {
		return nil, nil
	}
	t.state = target
	msg := t.Current(now)
	return &msg, nil
}

// Current returns the decision in force together with the last reading.
func (t *Threshold) Current(now time.Time) Message {
	return Message{
		ControllerID: t.id,
		Value:        Binary(t.state == StateOn),
		Timestamp:    now,
		Reading:      t.reading,
	}
}
