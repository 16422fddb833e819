// Package config holds the CLI configuration file model and the build
// version variables injected by the dev tool.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/si7021"
)

var (
	Version = "latest"
	Commit  = "none"
	Date    = "unknown"
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterPeriph  = "periph"
	AdapterNanoPi  = "nanopi"
	AdapterSim     = "sim"
)

// Config describes how to reach the sensor and the configuration to apply
// once it is opened. Pointer fields are left untouched on the device when nil.
type Config struct {
	Adapter     string         `yaml:"adapter"`
	Bus         string         `yaml:"bus"`
	GobotBus    int            `yaml:"gobot_bus"`
	DeviceIndex int            `yaml:"device_index"`
	SpeedHz     int            `yaml:"speed_hz"`
	Address     byte           `yaml:"address"`
	HoldMaster  bool           `yaml:"hold_master"`
	Checksum    bool           `yaml:"checksum"`
	Delay       *time.Duration `yaml:"conversion_delay"`
	Interval    time.Duration  `yaml:"interval"`
	Resolution  *string        `yaml:"resolution"`
	Heater      *bool          `yaml:"heater"`
	HeaterLevel *string        `yaml:"heater_level"`
}

func Default() Config {
	return Config{
		Adapter:     AdapterMCP2221,
		GobotBus:    2,
		DeviceIndex: -1,
		SpeedHz:     100_000,
		Address:     si7021.DefaultAddress,
		Interval:    time.Second,
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Adapter {
	case AdapterMCP2221, AdapterPeriph, AdapterNanoPi, AdapterSim:
	default:
		errs = append(errs, fmt.Errorf("unknown adapter %q", c.Adapter))
	}
	if c.Address > 0x7F {
		errs = append(errs, fmt.Errorf("address %#x is not a 7-bit address", c.Address))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Resolution != nil {
		if _, err := si7021.ParseResolution(*c.Resolution); err != nil {
			errs = append(errs, err)
		}
	}
	if c.HeaterLevel != nil {
		if _, err := si7021.ParseHeaterConfig(*c.HeaterLevel); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DriverOptions translates the configuration into driver options.
func (c Config) DriverOptions() []si7021.Opt {
	opts := []si7021.Opt{si7021.WithAddress(c.Address)}
	if c.HoldMaster {
		opts = append(opts, si7021.WithHoldMaster())
	}
	if c.Checksum {
		opts = append(opts, si7021.WithChecksum())
	}
	if c.Delay != nil {
		opts = append(opts, si7021.WithConversionDelay(*c.Delay))
	}
	return opts
}
