// Package emit publishes batches of control messages to an external sink.
// One Publish call carries one tick's non-empty batch.
package emit

import (
	"context"
	"fmt"

	"github.com/sweeney/equilibrium/internal/control"
)

// Emitter publishes an ordered batch of messages.
type Emitter interface {
	// Publish sends msgs. Transports with ordering guarantees keep the
	// order of msgs; otherwise ordering is best effort.
	Publish(ctx context.Context, msgs []control.Message) error
}

// Closer is an Emitter that holds a connection.
type Closer interface {
	Emitter
	Close() error
}

// EmitError reports a batch that was dropped after the retry policy gave up.
type EmitError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("emit to %s: batch dropped after %d attempt(s): %v", e.Target, e.Attempts, e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}
