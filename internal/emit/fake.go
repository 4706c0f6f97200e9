package emit

import (
	"context"
	"sync"

	"github.com/sweeney/equilibrium/internal/control"
)

// Fake records published batches for test assertions.
type Fake struct {
	mu sync.Mutex

	// Batches contains every batch that was accepted.
	Batches [][]control.Message

	// PublishError, if set, is returned by Publish.
	PublishError error

	// FailTimes makes the next FailTimes calls fail with PublishError.
	// Zero with a non-nil PublishError fails every call.
	FailTimes int

	// Calls counts Publish invocations, including failed ones.
	Calls int

	// Closed tracks if Close was called.
	Closed bool

	// OnPublish, if set, runs at the start of every Publish call.
	OnPublish func()
}

// NewFake creates a Fake emitter.
func NewFake() *Fake {
	return &Fake{}
}

// Publish records msgs.
func (f *Fake) Publish(_ context.Context, msgs []control.Message) error {
	f.mu.Lock()
	hook := f.OnPublish
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.PublishError != nil {
		if f.FailTimes == 0 {
			return f.PublishError
		}
		f.FailTimes--
		if f.FailTimes == 0 {
			err := f.PublishError
			f.PublishError = nil
			return err
		}
		return f.PublishError
	}
	batch := make([]control.Message, len(msgs))
	copy(batch, msgs)
	f.Batches = append(f.Batches, batch)
	return nil
}

// Snapshot returns a copy of the recorded batches.
func (f *Fake) Snapshot() [][]control.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]control.Message, len(f.Batches))
	copy(out, f.Batches)
	return out
}

// Close marks the emitter as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
