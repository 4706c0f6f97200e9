package gpio

import "testing"

func TestConfigDefaults(t *testing.T) {
	var c Config
	if c.chip() != DefaultChip {
		t.Errorf("chip: got %q, want %q", c.chip(), DefaultChip)
	}
	if c.consumer() != "equilibrium" {
		t.Errorf("consumer: got %q", c.consumer())
	}

	c = Config{Chip: "gpiochip4", Consumer: "heater"}
	if c.chip() != "gpiochip4" || c.consumer() != "heater" {
		t.Errorf("explicit values not kept: %+v", c)
	}
}

func TestRawReading(t *testing.T) {
	if rawReading(1) != "1" || rawReading(0) != "0" {
		t.Error("unexpected raw readings")
	}
}
