package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/si7021"
	"github.com/mklimuk/si7021/adapter"
	"github.com/mklimuk/si7021/i2c"
	"github.com/mklimuk/si7021/pkg/config"
	"github.com/mklimuk/si7021/si7021test"
)

// loadConfig reads the configuration file when given and applies the global
// flag overrides on top of it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("bus") {
		cfg.Bus = c.String("bus")
	}
	if c.IsSet("address") {
		addr, err := parseByte(c.String("address"))
		if err != nil {
			return cfg, fmt.Errorf("invalid address: %w", err)
		}
		cfg.Address = addr
	}
	return cfg, cfg.Validate()
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// openBus returns the transport selected by the configuration along with
// a function releasing it.
func openBus(ctx context.Context, cfg config.Config) (si7021.I2CBus, func(), error) {
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		ad := adapter.NewMCP2221(adapter.WithDeviceIndex(cfg.DeviceIndex))
		if err := ad.Init(ctx, cfg.SpeedHz); err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return ad, releaser(ctx, "bridge", ad.Release), nil
	case config.AdapterPeriph:
		bus, err := i2c.NewGenericBus(cfg.Bus)
		if err != nil {
			return nil, nil, err
		}
		if err := bus.SetSpeed(int64(cfg.SpeedHz)); err != nil {
			slog.Warn("bus speed not applied", "error", err)
		}
		return bus, releaser(ctx, "bus", func(context.Context) error { return bus.Close() }), nil
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := adapter.NewGobotBus(npi, cfg.GobotBus)
		return bus, releaser(ctx, "adaptor", func(ctx context.Context) error {
			return errors.Join(bus.Release(ctx), npi.I2cBusAdaptor.Finalize())
		}), nil
	case config.AdapterSim:
		dev := si7021test.NewDevice()
		return dev, releaser(ctx, "simulator", dev.Release), nil
	}
	return nil, nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
}

// releaser wraps a transport release into a closer that logs its failure.
func releaser(ctx context.Context, what string, release func(context.Context) error) func() {
	return func() {
		if err := release(ctx); err != nil {
			slog.Error("error releasing "+what, "error", err)
		}
	}
}

// openSensor opens the configured transport, refreshes the driver and applies
// the settings present in the configuration. Refresh failures are logged,
// not fatal.
func openSensor(ctx context.Context, cfg config.Config) (*si7021.Si7021, func(), error) {
	bus, closeBus, err := openBus(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	sensor, err := si7021.Open(ctx, bus, cfg.DriverOptions()...)
	if err != nil {
		slog.Warn("sensor state partially refreshed", "error", err)
	}
	if err := applyConfig(ctx, sensor, cfg); err != nil {
		closeBus()
		return nil, nil, err
	}
	return sensor, closeBus, nil
}

var errNotApplied = errors.New("device did not confirm the new value")

func applyConfig(ctx context.Context, sensor *si7021.Si7021, cfg config.Config) error {
	if cfg.Resolution != nil {
		res, err := si7021.ParseResolution(*cfg.Resolution)
		if err != nil {
			return err
		}
		if err := confirm(sensor.SetResolution(ctx, res)); err != nil {
			return fmt.Errorf("resolution %s: %w", res, err)
		}
	}
	if cfg.Heater != nil && *cfg.Heater != sensor.Heater() {
		if err := confirm(sensor.SetHeater(ctx, *cfg.Heater)); err != nil {
			return fmt.Errorf("heater: %w", err)
		}
	}
	if cfg.HeaterLevel != nil {
		level, err := si7021.ParseHeaterConfig(*cfg.HeaterLevel)
		if err != nil {
			return err
		}
		if err := confirm(sensor.SetHeaterConfig(ctx, level)); err != nil {
			return fmt.Errorf("heater level %s: %w", level, err)
		}
	}
	return nil
}

func confirm(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errNotApplied
	}
	return nil
}
