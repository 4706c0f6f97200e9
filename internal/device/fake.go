package device

import (
	"context"
	"errors"
	"sync"

	"github.com/sweeney/equilibrium/internal/control"
)

// FakeInput is a test double that returns scripted readings.
type FakeInput struct {
	mu sync.Mutex

	// Readings contains scripted raw readings. Each call to Read consumes the
	// next one; once exhausted the last reading repeats.
	Readings []string

	// ReadError, if set, will be returned by Read.
	ReadError error

	index int
	reads int
}

// NewFakeInput creates a FakeInput with the given readings.
func NewFakeInput(readings ...string) *FakeInput {
	return &FakeInput{Readings: readings}
}

// Read returns the next scripted reading.
func (f *FakeInput) Read(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.ReadError != nil {
		return "", f.ReadError
	}
	if len(f.Readings) == 0 {
		return "", errors.New("no readings configured")
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Reads returns how many times Read was called.
func (f *FakeInput) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// FakeOutput records the values written to it.
type FakeOutput struct {
	mu sync.Mutex

	// Name identifies the output in test failures.
	Name string

	// WriteError, if set, will be returned by Write and nothing is recorded.
	WriteError error

	writes []control.Value
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput(name string) *FakeOutput {
	return &FakeOutput{Name: name}
}

// Write records v.
func (f *FakeOutput) Write(_ context.Context, v control.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.writes = append(f.writes, v)
	return nil
}

// Writes returns a copy of all recorded values.
func (f *FakeOutput) Writes() []control.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]control.Value, len(f.writes))
	copy(out, f.writes)
	return out
}

// SetWriteError changes WriteError under the lock.
func (f *FakeOutput) SetWriteError(err error) {
	f.mu.Lock()
	f.WriteError = err
	f.mu.Unlock()
}
