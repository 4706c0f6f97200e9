//go:build !linux

package gpio

import (
	"context"
	"errors"

	"github.com/sweeney/equilibrium/internal/control"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Input is not available on non-Linux platforms.
type Input struct{ cfg Config }

// OpenInput returns an error on non-Linux platforms.
func OpenInput(cfg Config) (*Input, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (i *Input) Read(context.Context) (string, error) {
	return "", errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (i *Input) Close() error {
	return nil
}

// Output is not available on non-Linux platforms.
type Output struct{ cfg Config }

// OpenOutput returns an error on non-Linux platforms.
func OpenOutput(cfg Config) (*Output, error) {
	return nil, errUnsupported
}

// Write is not implemented on non-Linux platforms.
func (o *Output) Write(context.Context, control.Value) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (o *Output) Close() error {
	return nil
}
