package control

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newPHController(t *testing.T, in Input) *BidirectionalThreshold {
	t.Helper()
	c, err := NewBidirectionalThreshold("ph", in, &nopOutput{name: "base"}, &nopOutput{name: "acid"}, 6.5, 7.5, time.Minute)
	if err != nil {
		t.Fatalf("NewBidirectionalThreshold: %v", err)
	}
	return c
}

func TestBidirectionalDirectionSequence(t *testing.T) {
	ctx := context.Background()
	in := &scriptInput{readings: []string{"6.0", "6.1", "7.0", "7.2", "8.0", "8.4"}}
	c := newPHController(t, in)

	start := clock(9, 0, 0)
	var got []Direction
	for i := 0; i < 6; i++ {
		msg, err := c.Evaluate(ctx, start.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if msg != nil {
			if msg.Value.Kind != KindDirection {
				t.Errorf("sample %d: kind: got %s, want direction", i, msg.Value.Kind)
			}
			got = append(got, msg.Value.Direction)
		}
	}

	want := []Direction{DirectionIncreasing, DirectionIdle, DirectionDecreasing}
	if len(got) != len(want) {
		t.Fatalf("directions: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("direction %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBidirectionalBandEdgesAreIdle(t *testing.T) {
	ctx := context.Background()
	in := &scriptInput{readings: []string{"6.5", "7.5"}}
	c := newPHController(t, in)
	start := clock(9, 0, 0)

	for i := 0; i < 2; i++ {
		if msg, _ := c.Evaluate(ctx, start.Add(time.Duration(i)*time.Minute)); msg != nil {
			t.Errorf("sample %d on band edge: expected idle (no change), got %v", i, msg.Value)
		}
	}
	if c.Direction() != DirectionIdle {
		t.Errorf("direction: got %s, want IDLE", c.Direction())
	}
}

func TestBidirectionalSamplingGate(t *testing.T) {
	ctx := context.Background()
	in := &scriptInput{readings: []string{"5.0", "9.0"}}
	c := newPHController(t, in)
	start := clock(9, 0, 0)

	if msg, _ := c.Evaluate(ctx, start); msg == nil {
		t.Fatal("expected INCREASING on first sample")
	}
	for sec := 1; sec < 60; sec += 7 {
		if msg, _ := c.Evaluate(ctx, start.Add(time.Duration(sec)*time.Second)); msg != nil {
			t.Errorf("second %d: expected gate to skip sample", sec)
		}
	}
	if in.reads != 1 {
		t.Errorf("reads: got %d, want 1", in.reads)
	}
}

func TestBidirectionalReadErrorHoldsDirection(t *testing.T) {
	ctx := context.Background()
	in := &scriptInput{readings: []string{"9.0", ""}}
	c := newPHController(t, in)
	start := clock(9, 0, 0)

	c.Evaluate(ctx, start)
	_, err := c.Evaluate(ctx, start.Add(time.Minute))
	var rerr *InputReadError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *InputReadError, got %v", err)
	}
	if c.Direction() != DirectionDecreasing {
		t.Errorf("direction: got %s, want DECREASING", c.Direction())
	}
	if last, _ := c.LastSample(); !last.Equal(start) {
		t.Errorf("last sample advanced on failure: %v", last)
	}
}

func TestBand(t *testing.T) {
	low, high := Band(7.0, 0.5)
	if low != 6.5 || high != 7.5 {
		t.Errorf("Band(7, 0.5): got (%v, %v), want (6.5, 7.5)", low, high)
	}
}

func TestNewBidirectionalValidation(t *testing.T) {
	in := &scriptInput{}
	inc, dec := &nopOutput{}, &nopOutput{}

	tests := []struct {
		name      string
		low, high float64
		interval  time.Duration
	}{
		{"low equals high", 7, 7, time.Minute},
		{"low above high", 8, 7, time.Minute},
		{"zero interval", 6, 7, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBidirectionalThreshold("ph", in, inc, dec, tt.low, tt.high, tt.interval)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}

	if _, err := NewBidirectionalThreshold("ph", in, inc, nil, 6, 7, time.Minute); !errors.Is(err, ErrInvalid) {
		t.Errorf("nil decrease output: expected ErrInvalid, got %v", err)
	}
}
