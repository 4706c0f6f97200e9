// Package gpio provides control.Input and control.Output capabilities backed
// by GPIO lines. The real implementation uses the Linux GPIO character device.
// Other platforms get a stub that fails at construction.
package gpio

// DefaultChip is the GPIO chip used when none is configured.
const DefaultChip = "gpiochip0"

// Bias selects the input line bias.
type Bias string

const (
	BiasNone     Bias = ""
	BiasPullDown Bias = "pull-down"
	BiasPullUp   Bias = "pull-up"
)

// Config describes one GPIO line.
type Config struct {
	// Chip is the character device name, e.g. "gpiochip0".
	Chip string
	// Line is the line offset on the chip (BCM numbering on a Raspberry Pi).
	Line int
	// ActiveLow inverts the physical level: logical ON drives the line low,
	// and a low input reads as "1".
	ActiveLow bool
	// Bias applies to inputs only.
	Bias Bias
	// Consumer labels the line in the kernel (visible in gpioinfo).
	Consumer string
}

func (c Config) chip() string {
	if c.Chip == "" {
		return DefaultChip
	}
	return c.Chip
}

func (c Config) consumer() string {
	if c.Consumer == "" {
		return "equilibrium"
	}
	return c.Consumer
}

// rawReading renders a logical line value as the raw reading of an Input.
func rawReading(v int) string {
	if v != 0 {
		return "1"
	}
	return "0"
}
