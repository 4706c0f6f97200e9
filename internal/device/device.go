// Package device provides Input and Output capabilities that are not tied to
// GPIO: callbacks, sysfs-style files, constant readings and a logging sink.
// GPIO lines live in package gpio.
package device

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/sweeney/equilibrium/internal/control"
)

// FuncInput adapts a function to control.Input.
type FuncInput struct {
	fn func(ctx context.Context) (string, error)
}

// InputFunc wraps fn.
func InputFunc(fn func(ctx context.Context) (string, error)) *FuncInput {
	return &FuncInput{fn: fn}
}

// Read calls the wrapped function.
func (f *FuncInput) Read(ctx context.Context) (string, error) {
	return f.fn(ctx)
}

// FuncOutput adapts a function to control.Output.
type FuncOutput struct {
	fn func(ctx context.Context, v control.Value) error
}

// OutputFunc wraps fn.
func OutputFunc(fn func(ctx context.Context, v control.Value) error) *FuncOutput {
	return &FuncOutput{fn: fn}
}

// Write calls the wrapped function.
func (f *FuncOutput) Write(ctx context.Context, v control.Value) error {
	return f.fn(ctx, v)
}

// StaticInput always returns the same reading.
type StaticInput struct {
	Value string
}

// Read returns s.Value.
func (s *StaticInput) Read(context.Context) (string, error) {
	return s.Value, nil
}

// FileInput reads a sensor exposed as a text file, such as a 1-wire
// thermometer under /sys/bus/w1/devices.
type FileInput struct {
	Path string
	// Scale, if non-zero, multiplies the numeric reading (0.001 turns
	// millidegrees into degrees).
	Scale float64
}

// Read returns the trimmed file contents, scaled when Scale is set.
func (f *FileInput) Read(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	raw := lastField(string(data))
	if f.Scale == 0 {
		return raw, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return strconv.FormatFloat(v*f.Scale, 'f', -1, 64), nil
}

// lastField handles both plain values ("21437") and w1_slave style output
// ending in "t=21437".
func lastField(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "t="); i >= 0 {
		return strings.TrimSpace(s[i+2:])
	}
	return s
}

// FileOutput writes "1" or "0" to a file, such as a sysfs relay attribute.
type FileOutput struct {
	Path string
}

// Write stores the binary value. Direction values are rejected.
func (f *FileOutput) Write(_ context.Context, v control.Value) error {
	if v.Kind != control.KindBinary {
		return fmt.Errorf("file output %s: unsupported value kind %s", f.Path, v.Kind)
	}
	b := "0"
	if v.On {
		b = "1"
	}
	if err := os.WriteFile(f.Path, []byte(b), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	return nil
}

// LogOutput only logs the values written to it. It is the dry-run driver.
type LogOutput struct {
	Name string
	log  logr.Logger

	mu   sync.Mutex
	last *control.Value
}

// NewLogOutput creates a LogOutput.
func NewLogOutput(name string, log logr.Logger) *LogOutput {
	return &LogOutput{Name: name, log: log}
}

// Write logs v.
func (l *LogOutput) Write(_ context.Context, v control.Value) error {
	l.mu.Lock()
	l.last = &v
	l.mu.Unlock()
	l.log.Info("output write", "output", l.Name, "value", v.String())
	return nil
}

// Last returns the last value written.
func (l *LogOutput) Last() (control.Value, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return control.Value{}, false
	}
	return *l.last, true
}
