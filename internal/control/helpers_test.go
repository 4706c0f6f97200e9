package control

import (
	"context"
	"errors"
	"time"
)

// scriptInput returns scripted readings; an empty string entry yields errRead.
type scriptInput struct {
	readings []string
	index    int
	reads    int
}

var errRead = errors.New("sensor unreachable")

func (s *scriptInput) Read(context.Context) (string, error) {
	s.reads++
	if len(s.readings) == 0 {
		return "", errRead
	}
	r := s.readings[s.index]
	if s.index < len(s.readings)-1 {
		s.index++
	}
	if r == "" {
		return "", errRead
	}
	return r, nil
}

type nopOutput struct{ name string }

func (*nopOutput) Write(context.Context, Value) error { return nil }

var baseDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func clock(h, m, s int) time.Time {
	return baseDay.Add(time.Duration(At(h, m, s)))
}
