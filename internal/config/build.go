package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/sweeney/equilibrium/internal/control"
	"github.com/sweeney/equilibrium/internal/device"
	"github.com/sweeney/equilibrium/internal/gpio"
)

// Mode selects which devices Build opens.
type Mode int

const (
	// ModeLive opens every configured device.
	ModeLive Mode = iota
	// ModeDryRun opens inputs but replaces every output with a log output.
	ModeDryRun
	// ModeValidate touches no hardware: outputs log and inputs read "0".
	ModeValidate
)

// Built holds the devices and group constructed from a Config.
type Built struct {
	Group   *control.Group
	Inputs  map[string]control.Input
	Outputs map[string]control.Output

	closers []io.Closer
}

// Close releases every opened device, outputs first.
func (b *Built) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// Build opens devices and constructs the controller group. On error every
// device opened so far is closed.
func Build(cfg *Config, mode Mode, log logr.Logger) (_ *Built, err error) {
	b := &Built{
		Inputs:  make(map[string]control.Input),
		Outputs: make(map[string]control.Output),
	}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	for _, d := range cfg.Devices.Inputs {
		in, err := b.openInput(d, mode)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", d.Name, err)
		}
		b.Inputs[d.Name] = in
	}
	for _, d := range cfg.Devices.Outputs {
		out, err := b.openOutput(d, mode, log)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", d.Name, err)
		}
		b.Outputs[d.Name] = out
	}

	b.Group = control.NewGroup().WithLogger(log)
	for _, cc := range cfg.Controllers {
		c, err := b.controller(cc)
		if err != nil {
			return nil, err
		}
		b.Group.Add(c)
	}
	if err := b.Group.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Built) openInput(d DeviceConfig, mode Mode) (control.Input, error) {
	if mode == ModeValidate {
		return &device.StaticInput{Value: "0"}, nil
	}
	switch d.Driver {
	case DriverGPIO:
		in, err := gpio.OpenInput(gpioConfig(d))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, in)
		return in, nil
	case DriverFile:
		return &device.FileInput{Path: d.Path, Scale: d.Scale}, nil
	case DriverStatic:
		return &device.StaticInput{Value: d.Value}, nil
	}
	return nil, fmt.Errorf("unsupported input driver %q", d.Driver)
}

func (b *Built) openOutput(d DeviceConfig, mode Mode, log logr.Logger) (control.Output, error) {
	if mode != ModeLive {
		return device.NewLogOutput(d.Name, log.WithName("dry-run")), nil
	}
	switch d.Driver {
	case DriverGPIO:
		out, err := gpio.OpenOutput(gpioConfig(d))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, out)
		return out, nil
	case DriverFile:
		return &device.FileOutput{Path: d.Path}, nil
	case DriverLog:
		return device.NewLogOutput(d.Name, log.WithName("output")), nil
	}
	return nil, fmt.Errorf("unsupported output driver %q", d.Driver)
}

func gpioConfig(d DeviceConfig) gpio.Config {
	return gpio.Config{
		Chip:      d.Chip,
		Line:      d.Line,
		ActiveLow: d.ActiveLow,
		Bias:      gpio.Bias(d.Bias),
		Consumer:  "equilibrium:" + d.Name,
	}
}

func (b *Built) controller(cc ControllerConfig) (control.Controller, error) {
	params, err := decodeParams(cc)
	if err != nil {
		return nil, fmt.Errorf("controller %s: %w", cc.ID, err)
	}
	switch p := params.(type) {
	case timedParams:
		start, err := control.ParseTimeOfDay(p.StartTime)
		if err != nil {
			return nil, fmt.Errorf("controller %s: %w", cc.ID, err)
		}
		return control.NewTimedOutput(cc.ID, b.Outputs[cc.Output], start, p.Duration)
	case thresholdParams:
		var opts []control.ThresholdOption
		if p.Inverted {
			opts = append(opts, control.Inverted())
		}
		return control.NewThreshold(cc.ID, b.Inputs[cc.Input], b.Outputs[cc.Output], *p.Limit, p.SampleInterval, opts...)
	case bidirectionalParams:
		low, high, err := p.limits()
		if err != nil {
			return nil, fmt.Errorf("controller %s: %w", cc.ID, err)
		}
		return control.NewBidirectionalThreshold(cc.ID, b.Inputs[cc.Input],
			b.Outputs[cc.Outputs.Increase], b.Outputs[cc.Outputs.Decrease], low, high, p.SampleInterval)
	default:
		panic(fmt.Sprintf("config: unhandled params type %T", params))
	}
}
