package control

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newGrowLight(t *testing.T) *TimedOutput {
	t.Helper()
	c, err := NewTimedOutput("grow-light", &nopOutput{}, At(5, 0, 0), 8*time.Hour)
	if err != nil {
		t.Fatalf("NewTimedOutput: %v", err)
	}
	return c
}

func TestTimedOutputDailyScenario(t *testing.T) {
	c := newGrowLight(t)
	ctx := context.Background()

	steps := []struct {
		now  time.Time
		want *State
	}{
		{clock(4, 59, 59), nil},
		{clock(5, 0, 0), ptr(StateOn)},
		{clock(12, 59, 59), nil},
		{clock(13, 0, 0), ptr(StateOff)},
	}

	for i, s := range steps {
		msg, err := c.Evaluate(ctx, s.now)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if s.want == nil {
			if msg != nil {
				t.Errorf("step %d (%v): expected no message, got %v", i, s.now.Format(time.TimeOnly), msg.Value)
			}
			continue
		}
		if msg == nil {
			t.Fatalf("step %d (%v): expected %s, got none", i, s.now.Format(time.TimeOnly), *s.want)
		}
		if got := msg.Value.String(); got != string(*s.want) {
			t.Errorf("step %d: got %s, want %s", i, got, *s.want)
		}
		if msg.ControllerID != "grow-light" {
			t.Errorf("step %d: controller id: got %q", i, msg.ControllerID)
		}
		if !msg.Timestamp.Equal(s.now) {
			t.Errorf("step %d: timestamp: got %v, want %v", i, msg.Timestamp, s.now)
		}
	}
}

func TestTimedOutputWindowBoundaries(t *testing.T) {
	c := newGrowLight(t)

	tests := []struct {
		now  time.Time
		want bool
	}{
		{clock(0, 0, 0), false},
		{clock(4, 59, 59), false},
		{clock(5, 0, 0), true},
		{clock(9, 30, 0), true},
		{clock(12, 59, 59), true},
		{clock(12, 59, 59).Add(999 * time.Millisecond), true},
		{clock(13, 0, 0), false},
		{clock(23, 59, 59), false},
	}
	for _, tt := range tests {
		if got := c.Active(tt.now); got != tt.want {
			t.Errorf("Active(%s): got %v, want %v", tt.now.Format("15:04:05.000"), got, tt.want)
		}
	}
}

func TestTimedOutputWindowCrossesMidnight(t *testing.T) {
	c, err := NewTimedOutput("night-pump", &nopOutput{}, At(22, 0, 0), 4*time.Hour)
	if err != nil {
		t.Fatalf("NewTimedOutput: %v", err)
	}

	tests := []struct {
		now  time.Time
		want bool
	}{
		{clock(21, 59, 59), false},
		{clock(22, 0, 0), true},
		{clock(23, 59, 59), true},
		{clock(0, 0, 0), true},
		{clock(1, 59, 59), true},
		{clock(2, 0, 0), false},
		{clock(12, 0, 0), false},
	}
	for _, tt := range tests {
		if got := c.Active(tt.now); got != tt.want {
			t.Errorf("Active(%s): got %v, want %v", tt.now.Format(time.TimeOnly), got, tt.want)
		}
	}
}

func TestTimedOutputFullDayAlwaysOn(t *testing.T) {
	c, err := NewTimedOutput("circulation", &nopOutput{}, At(6, 0, 0), 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTimedOutput: %v", err)
	}
	for h := 0; h < 24; h++ {
		if !c.Active(clock(h, 30, 0)) {
			t.Errorf("expected active at %02d:30", h)
		}
	}
}

func TestTimedOutputIdempotentWithinRegion(t *testing.T) {
	c := newGrowLight(t)
	ctx := context.Background()

	if msg, _ := c.Evaluate(ctx, clock(6, 0, 0)); msg == nil {
		t.Fatal("expected ON on first evaluation inside window")
	}
	for i := 0; i < 5; i++ {
		if msg, _ := c.Evaluate(ctx, clock(6, 0, 0)); msg != nil {
			t.Errorf("repeat %d: expected no message, got %v", i, msg.Value)
		}
	}
	if c.State() != StateOn {
		t.Errorf("state: got %s, want ON", c.State())
	}
}

func TestTimedOutputNoMessageWhenStartingOutsideWindow(t *testing.T) {
	c := newGrowLight(t)
	msg, err := c.Evaluate(context.Background(), clock(20, 0, 0))
	if err != nil || msg != nil {
		t.Errorf("expected (nil, nil) outside window from default OFF, got (%v, %v)", msg, err)
	}
}

func TestTimedOutputUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	c := newGrowLight(t)
	// 03:30 UTC is 05:30 in UTC+2.
	now := time.Date(2026, 3, 14, 3, 30, 0, 0, time.UTC).In(loc)
	if !c.Active(now) {
		t.Error("expected time of day to follow the location of now")
	}
}

func TestNewTimedOutputValidation(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		output   Output
		start    TimeOfDay
		duration time.Duration
	}{
		{"empty id", "", &nopOutput{}, At(5, 0, 0), time.Hour},
		{"nil output", "x", nil, At(5, 0, 0), time.Hour},
		{"zero duration", "x", &nopOutput{}, At(5, 0, 0), 0},
		{"negative duration", "x", &nopOutput{}, At(5, 0, 0), -time.Hour},
		{"duration over a day", "x", &nopOutput{}, At(5, 0, 0), 25 * time.Hour},
		{"start past midnight", "x", &nopOutput{}, At(24, 0, 0), time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTimedOutput(tt.id, tt.output, tt.start, tt.duration)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"05:00", At(5, 0, 0), false},
		{"23:59:30", At(23, 59, 30), false},
		{"00:00", 0, false},
		{"5am", 0, true},
		{"25:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q): got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
