package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/sweeney/equilibrium/internal/control"
)

type timedParams struct {
	StartTime string        `mapstructure:"start_time"`
	Duration  time.Duration `mapstructure:"duration"`
}

type thresholdParams struct {
	Limit          *float64      `mapstructure:"limit"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	Inverted       bool          `mapstructure:"inverted"`
}

// bidirectionalParams accepts either low_limit/high_limit or
// setpoint/tolerance.
type bidirectionalParams struct {
	LowLimit       *float64      `mapstructure:"low_limit"`
	HighLimit      *float64      `mapstructure:"high_limit"`
	Setpoint       *float64      `mapstructure:"setpoint"`
	Tolerance      *float64      `mapstructure:"tolerance"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

func (p bidirectionalParams) limits() (low, high float64, err error) {
	switch {
	case p.LowLimit != nil && p.HighLimit != nil && p.Setpoint == nil && p.Tolerance == nil:
		return *p.LowLimit, *p.HighLimit, nil
	case p.Setpoint != nil && p.Tolerance != nil && p.LowLimit == nil && p.HighLimit == nil:
		low, high = control.Band(*p.Setpoint, *p.Tolerance)
		return low, high, nil
	}
	return 0, 0, fmt.Errorf("give either low_limit and high_limit or setpoint and tolerance")
}

func decode(in map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

// decodeParams decodes and checks cc.Params for cc.Kind.
func decodeParams(cc ControllerConfig) (interface{}, error) {
	switch cc.Kind {
	case KindTimed:
		var p timedParams
		if err := decode(cc.Params, &p); err != nil {
			return nil, err
		}
		if p.StartTime == "" {
			return nil, fmt.Errorf("params.start_time is required")
		}
		if _, err := control.ParseTimeOfDay(p.StartTime); err != nil {
			return nil, fmt.Errorf("params.start_time: %w", err)
		}
		return p, nil
	case KindThreshold:
		var p thresholdParams
		if err := decode(cc.Params, &p); err != nil {
			return nil, err
		}
		if p.Limit == nil {
			return nil, fmt.Errorf("params.limit is required")
		}
		return p, nil
	case KindBidirectional:
		var p bidirectionalParams
		if err := decode(cc.Params, &p); err != nil {
			return nil, err
		}
		if _, _, err := p.limits(); err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown kind %q", cc.Kind)
}
