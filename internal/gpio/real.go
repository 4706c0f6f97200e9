//go:build linux

package gpio

import (
	"context"
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/equilibrium/internal/control"
)

// Input reads a single GPIO line. The raw reading is "1" when the line is
// logically active and "0" otherwise, so a Threshold with limit 0.5 turns a
// float switch into an on/off decision.
type Input struct {
	cfg  Config
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenInput requests the line as an input.
func OpenInput(cfg Config) (*Input, error) {
	chip, err := gpiocdev.NewChip(cfg.chip())
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.chip(), err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer(cfg.consumer())}
	switch cfg.Bias {
	case BiasPullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	case BiasPullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request input line %d: %w", cfg.Line, err)
	}
	return &Input{cfg: cfg, chip: chip, line: line}, nil
}

// Read returns the logical line value.
func (i *Input) Read(context.Context) (string, error) {
	v, err := i.line.Value()
	if err != nil {
		return "", fmt.Errorf("read line %d: %w", i.cfg.Line, err)
	}
	return rawReading(v), nil
}

// Close releases the line and the chip.
func (i *Input) Close() error {
	var errs []error
	if i.line != nil {
		if err := i.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", i.cfg.Line, err))
		}
	}
	if i.chip != nil {
		if err := i.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Output drives a single GPIO line. It starts inactive.
type Output struct {
	cfg  Config
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenOutput requests the line as an output driven to its inactive level.
func OpenOutput(cfg Config) (*Output, error) {
	chip, err := gpiocdev.NewChip(cfg.chip())
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.chip(), err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer(cfg.consumer())}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output line %d: %w", cfg.Line, err)
	}
	return &Output{cfg: cfg, chip: chip, line: line}, nil
}

// Write sets the line. Only binary values are supported.
func (o *Output) Write(_ context.Context, v control.Value) error {
	if v.Kind != control.KindBinary {
		return fmt.Errorf("line %d: unsupported value kind %s", o.cfg.Line, v.Kind)
	}
	level := 0
	if v.On {
		level = 1
	}
	if err := o.line.SetValue(level); err != nil {
		return fmt.Errorf("set line %d: %w", o.cfg.Line, err)
	}
	return nil
}

// Close drives the line inactive, then reconfigures it as an input with
// pull-down (the Raspberry Pi boot default) so the actuator is left off.
func (o *Output) Close() error {
	var errs []error
	if o.line != nil {
		if err := o.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("deactivate line %d: %w", o.cfg.Line, err))
		}
		if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", o.cfg.Line, err))
		}
		if err := o.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", o.cfg.Line, err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
