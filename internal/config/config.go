// Package config loads the daemon's YAML configuration and builds devices
// and controllers from it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/equilibrium/internal/emit"
	"github.com/sweeney/equilibrium/internal/gpio"
)

const (
	DefaultPollInterval = time.Second
	DefaultHTTP         = ":8080"
	DefaultLogLevel     = "info"
	DefaultMQTTBuffer   = 256
)

// Controller kinds.
const (
	KindTimed         = "timed"
	KindThreshold     = "threshold"
	KindBidirectional = "bidirectional"
)

// Device drivers.
const (
	DriverGPIO   = "gpio"
	DriverFile   = "file"
	DriverStatic = "static"
	DriverLog    = "log"
)

// Config is the daemon configuration file.
type Config struct {
	PollInterval time.Duration      `yaml:"poll_interval"`
	Endpoint     string             `yaml:"endpoint"`
	KeepAlive    time.Duration      `yaml:"keep_alive"`
	Retry        RetryConfig        `yaml:"retry"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Redis        RedisConfig        `yaml:"redis"`
	HTTP         string             `yaml:"http"`
	Log          LogConfig          `yaml:"log"`
	Devices      DevicesConfig      `yaml:"devices"`
	Controllers  []ControllerConfig `yaml:"controllers"`
}

// RetryConfig maps to emit.Backoff. Attempts is the number of retries after
// the first failed publish; zero disables retrying.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
}

// MQTTConfig applies when the endpoint is an MQTT broker.
type MQTTConfig struct {
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Buffer      int    `yaml:"buffer"`
}

// RedisConfig applies when the endpoint is a Redis server.
type RedisConfig struct {
	Stream string `yaml:"stream"`
	MaxLen int64  `yaml:"max_len"`
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DevicesConfig lists the named devices controllers refer to.
type DevicesConfig struct {
	Outputs []DeviceConfig `yaml:"outputs"`
	Inputs  []DeviceConfig `yaml:"inputs"`
}

// DeviceConfig describes one named Input or Output.
type DeviceConfig struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"`

	// gpio
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
	Bias      string `yaml:"bias"`

	// file
	Path  string  `yaml:"path"`
	Scale float64 `yaml:"scale"`

	// static
	Value string `yaml:"value"`
}

// ControllerConfig describes one controller. Params are decoded per kind.
type ControllerConfig struct {
	ID      string                 `yaml:"id"`
	Kind    string                 `yaml:"kind"`
	Input   string                 `yaml:"input"`
	Output  string                 `yaml:"output"`
	Outputs DirectionOutputs       `yaml:"outputs"`
	Params  map[string]interface{} `yaml:"params"`
}

// DirectionOutputs names the two outputs of a bidirectional controller.
type DirectionOutputs struct {
	Increase string `yaml:"increase"`
	Decrease string `yaml:"decrease"`
}

// DefaultConfig returns the values used for keys the file leaves unset.
func DefaultConfig() *Config {
	return &Config{
		PollInterval: DefaultPollInterval,
		HTTP:         DefaultHTTP,
		Retry: RetryConfig{
			Initial:    500 * time.Millisecond,
			Max:        10 * time.Second,
			Multiplier: 2,
		},
		MQTT: MQTTConfig{
			ClientID: "equilibrium",
			Buffer:   DefaultMQTTBuffer,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads path over DefaultConfig and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RetryPolicy returns the publish retry policy.
func (c *Config) RetryPolicy() emit.RetryPolicy {
	if c.Retry.Attempts <= 0 {
		return emit.NoRetry{}
	}
	return emit.Backoff{
		Initial:    c.Retry.Initial,
		Max:        c.Retry.Max,
		Multiplier: c.Retry.Multiplier,
		Retries:    c.Retry.Attempts,
	}
}

// Validate checks everything that can be checked without building devices.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.PollInterval <= 0 {
		add("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.KeepAlive < 0 {
		add("keep_alive must not be negative, got %v", c.KeepAlive)
	}
	if c.Endpoint != "" {
		if err := validateEndpoint(c.Endpoint); err != nil {
			add("endpoint: %v", err)
		}
	}
	if c.Retry.Attempts < 0 {
		add("retry.attempts must not be negative")
	}
	if c.Retry.Attempts > 0 && c.Retry.Initial <= 0 {
		add("retry.initial must be positive when retries are enabled")
	}

	outputs := make(map[string]bool)
	targets := make(map[string]string)
	for i, d := range c.Devices.Outputs {
		if err := validateDevice(d, false); err != nil {
			add("devices.outputs[%d]: %v", i, err)
			continue
		}
		if outputs[d.Name] {
			add("devices.outputs[%d]: duplicate name %q", i, d.Name)
		}
		outputs[d.Name] = true
		if hw := hardwareOf(d); hw != "" {
			if other, ok := targets[hw]; ok {
				add("devices.outputs[%d]: %s drives %s, already used by %s", i, d.Name, hw, other)
			} else {
				targets[hw] = d.Name
			}
		}
	}
	inputs := make(map[string]bool)
	for i, d := range c.Devices.Inputs {
		if err := validateDevice(d, true); err != nil {
			add("devices.inputs[%d]: %v", i, err)
			continue
		}
		if inputs[d.Name] {
			add("devices.inputs[%d]: duplicate name %q", i, d.Name)
		}
		inputs[d.Name] = true
	}

	if len(c.Controllers) == 0 {
		add("no controllers configured")
	}
	ids := make(map[string]bool)
	used := make(map[string]string)
	claim := func(i int, id, name string) {
		if name == "" {
			return
		}
		if !outputs[name] {
			add("controllers[%d] %s: unknown output %q", i, id, name)
			return
		}
		if owner, ok := used[name]; ok {
			add("controllers[%d] %s: output %q already owned by %s", i, id, name, owner)
			return
		}
		used[name] = id
	}
	for i, cc := range c.Controllers {
		if cc.ID == "" {
			add("controllers[%d]: missing id", i)
		} else if ids[cc.ID] {
			add("controllers[%d]: duplicate id %q", i, cc.ID)
		}
		ids[cc.ID] = true

		switch cc.Kind {
		case KindTimed:
			if cc.Output == "" {
				add("controllers[%d] %s: output is required", i, cc.ID)
			}
			claim(i, cc.ID, cc.Output)
		case KindThreshold:
			if cc.Output == "" {
				add("controllers[%d] %s: output is required", i, cc.ID)
			}
			claim(i, cc.ID, cc.Output)
		case KindBidirectional:
			if cc.Outputs.Increase == "" || cc.Outputs.Decrease == "" {
				add("controllers[%d] %s: outputs.increase and outputs.decrease are required", i, cc.ID)
			}
			claim(i, cc.ID, cc.Outputs.Increase)
			claim(i, cc.ID, cc.Outputs.Decrease)
		default:
			add("controllers[%d] %s: unknown kind %q", i, cc.ID, cc.Kind)
			continue
		}
		if cc.Kind != KindTimed {
			if cc.Input == "" {
				add("controllers[%d] %s: input is required", i, cc.ID)
			} else if !inputs[cc.Input] {
				add("controllers[%d] %s: unknown input %q", i, cc.ID, cc.Input)
			}
		}
		if _, err := decodeParams(cc); err != nil {
			add("controllers[%d] %s: %v", i, cc.ID, err)
		}
	}
	return errors.Join(errs...)
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "tcp", "mqtt", "ssl", "ws", "wss", "redis", "rediss":
		return nil
	}
	return fmt.Errorf("unsupported scheme %q", u.Scheme)
}

// hardwareOf names the physical target of an output so two device entries
// cannot alias one relay. Log outputs have none.
func hardwareOf(d DeviceConfig) string {
	switch d.Driver {
	case DriverFile:
		return "file " + filepath.Clean(d.Path)
	case DriverGPIO:
		chip := d.Chip
		if chip == "" {
			chip = gpio.DefaultChip
		}
		return fmt.Sprintf("%s line %d", chip, d.Line)
	}
	return ""
}

func validateDevice(d DeviceConfig, input bool) error {
	if d.Name == "" {
		return errors.New("missing name")
	}
	switch d.Driver {
	case DriverGPIO:
		if d.Line < 0 {
			return fmt.Errorf("%s: negative gpio line", d.Name)
		}
		switch d.Bias {
		case "", "pull-up", "pull-down":
		default:
			return fmt.Errorf("%s: unknown bias %q", d.Name, d.Bias)
		}
	case DriverFile:
		if d.Path == "" {
			return fmt.Errorf("%s: file driver needs a path", d.Name)
		}
	case DriverStatic:
		if !input {
			return fmt.Errorf("%s: static driver is input only", d.Name)
		}
	case DriverLog:
		if input {
			return fmt.Errorf("%s: log driver is output only", d.Name)
		}
	default:
		return fmt.Errorf("%s: unknown driver %q", d.Name, d.Driver)
	}
	return nil
}
