package control

import (
	"context"
	"math"
	"time"
)

// Band returns the limits setpoint-tolerance and setpoint+tolerance.
func Band(setpoint, tolerance float64) (low, high float64) {
	return setpoint - tolerance, setpoint + tolerance
}

// BidirectionalThreshold regulates a quantity from both sides: it drives the
// increase output below the low limit, the decrease output above the high
// limit, and neither inside the band between them.
type BidirectionalThreshold struct {
	id        string
	input     Input
	increase  Output
	decrease  Output
	low       float64
	high      float64
	gate      sampler
	direction Direction
	reading   string
}

// NewBidirectionalThreshold requires low < high.
func NewBidirectionalThreshold(id string, input Input, increase, decrease Output, low, high float64, interval time.Duration, opts ...BidirectionalOption) (*BidirectionalThreshold, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if input == nil || increase == nil || decrease == nil {
		return nil, invalid(id, "nil input or output")
	}
	for _, v := range []float64{low, high} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid(id, "limit %v is not finite", v)
		}
	}
	if low >= high {
		return nil, invalid(id, "low limit %v must be below high limit %v", low, high)
	}
	if interval <= 0 {
		return nil, invalid(id, "sample interval %v must be positive", interval)
	}
	b := &BidirectionalThreshold{
		id:        id,
		input:     input,
		increase:  increase,
		decrease:  decrease,
		low:       low,
		high:      high,
		gate:      sampler{interval: interval},
		direction: DirectionIdle,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// BidirectionalOption configures a BidirectionalThreshold.
type BidirectionalOption func(*BidirectionalThreshold)

// WithFirstBandSample defers the first sample until at.
func WithFirstBandSample(at time.Time) BidirectionalOption {
	return func(b *BidirectionalThreshold) { b.gate.firstAt = at }
}

func (b *BidirectionalThreshold) sealed() {}

// ID returns the controller id.
func (b *BidirectionalThreshold) ID() string { return b.id }

// Outputs returns the increase and decrease outputs.
func (b *BidirectionalThreshold) Outputs() (increase, decrease Output) {
	return b.increase, b.decrease
}

// Limits returns the band limits.
func (b *BidirectionalThreshold) Limits() (low, high float64) { return b.low, b.high }

// SampleInterval returns the minimum time between two samples.
func (b *BidirectionalThreshold) SampleInterval() time.Duration { return b.gate.interval }

// LastSample returns the time of the last successful sample.
func (b *BidirectionalThreshold) LastSample() (time.Time, bool) { return b.gate.LastSample() }

// Direction returns the current decision.
func (b *BidirectionalThreshold) Direction() Direction { return b.direction }

// Evaluate samples the input when the sample interval has elapsed and emits
// a message when the direction changes.
func (b *BidirectionalThreshold) Evaluate(ctx context.Context, now time.Time) (*Message, error) {
	if !b.gate.due(now) {
		return nil, nil
	}
	v, raw, err := readNumber(ctx, b.id, b.input)
	if err != nil {
		return nil, err
	}
	b.gate.mark(now)
	b.reading = raw

	target := DirectionIdle
	switch {
	case v < b.low:
		target = DirectionIncreasing
	case v > b.high:
		target = DirectionDecreasing
	}
	if target == b.direction {
		return nil, nil
	}
	b.direction = target
	msg := b.Current(now)
	return &msg, nil
}

// Current returns the direction in force together with the last reading.
func (b *BidirectionalThreshold) Current(now time.Time) Message {
	return Message{
		ControllerID: b.id,
		Value:        Directional(b.direction),
		Timestamp:    now,
		Reading:      b.reading,
	}
}
