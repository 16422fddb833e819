package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/si7021"
	"github.com/mklimuk/si7021/cmd/si7021/console"
	"github.com/mklimuk/si7021/pkg/config"
)

var infoCmd = cli.Command{
	Name:  "info",
	Usage: "refresh the device and print its state as YAML",
	Action: func(c *cli.Context) error {
		return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
			if err := printYAML(sensor.State()); err != nil {
				return console.Fail("encoding error", err)
			}
			return nil
		})
	},
}

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"r"},
	Usage:   "measure temperature and humidity",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "keep measuring until interrupted",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "time between measurements in watch mode, overrides the config",
		},
		&cli.BoolFlag{
			Name:  "prev-rh",
			Usage: "read temperature from the last humidity conversion",
		},
	},
	Action: func(c *cli.Context) error {
		return withSensor(c, func(sensor *si7021.Si7021, cfg config.Config) error {
			if !c.Bool("watch") {
				return printMeasurement(c.Context, sensor, c.Bool("prev-rh"))
			}
			interval := cfg.Interval
			if c.IsSet("interval") {
				interval = c.Duration("interval")
			}
			return watch(c.Context, sensor, interval, c.Bool("prev-rh"))
		})
	},
}

// watch measures every interval until ctx is done or the process is interrupted.
func watch(parent context.Context, sensor *si7021.Si7021, interval time.Duration, prevRH bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := printMeasurement(ctx, sensor, prevRH); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			console.Errorf("%s", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printMeasurement(ctx context.Context, sensor *si7021.Si7021, prevRH bool) error {
	var temp, hum float32
	var err error
	if prevRH {
		hum, err = sensor.AskForHumidity(ctx)
		if err == nil {
			temp, err = sensor.AskForTemperaturePrevRH(ctx)
		}
	} else {
		temp, hum, err = sensor.Measure(ctx)
	}
	if err != nil {
		return console.Fail("measurement error", err)
	}
	console.Printf("%s  %s °C\n%s %s %%\n",
		console.PictoThermometer, console.White(fmt.Sprintf("%.2f", temp)),
		console.PictoHumidity, console.White(fmt.Sprintf("%.2f", hum)))
	return nil
}

var serialCmd = cli.Command{
	Name:  "serial",
	Usage: "print the electronic serial number and firmware",
	Action: func(c *cli.Context) error {
		return withBus(c, func(bus si7021.I2CBus, cfg config.Config) error {
			sensor := si7021.New(bus, cfg.DriverOptions()...)
			sn, err := sensor.AskForSerialNumber(c.Context)
			if err != nil {
				return console.Fail("serial number read error", err)
			}
			console.PInfof(console.PictoKey, "serial number: %s", console.White(fmt.Sprintf("%016X", sn)))
			console.Infof("device id: %s", console.White(fmt.Sprintf("0x%02x", sensor.FirmwareRev())))
			fw, err := sensor.AskForFirmwareVersion(c.Context)
			if err != nil {
				console.Warnf("firmware version read error: %s", err)
				return nil
			}
			console.Infof("firmware: %s", console.White(fw))
			return nil
		})
	},
}

var resetCmd = cli.Command{
	Name:  "reset",
	Usage: "soft reset the device, restoring register defaults",
	Action: func(c *cli.Context) error {
		return withBus(c, func(bus si7021.I2CBus, cfg config.Config) error {
			if err := si7021.New(bus, cfg.DriverOptions()...).Reset(c.Context); err != nil {
				return console.Fail("reset error", err)
			}
			console.Infof("device reset")
			return nil
		})
	},
}

// withBus loads the configuration once and hands the opened transport to fn.
func withBus(c *cli.Context, fn func(bus si7021.I2CBus, cfg config.Config) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return console.Exit(console.ExitBadRequest, "%s", console.Red(err))
	}
	bus, closeBus, err := openBus(c.Context, cfg)
	if err != nil {
		return console.Fail("could not open bus", err)
	}
	defer closeBus()
	return fn(bus, cfg)
}

// withSensor loads the configuration once, opens and configures the sensor
// and hands it to fn.
func withSensor(c *cli.Context, fn func(sensor *si7021.Si7021, cfg config.Config) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return console.Exit(console.ExitBadRequest, "%s", console.Red(err))
	}
	sensor, closeBus, err := openSensor(c.Context, cfg)
	if err != nil {
		return console.Fail("could not open sensor", err)
	}
	defer closeBus()
	return fn(sensor, cfg)
}

func printYAML(v interface{}) error {
	enc := yaml.NewEncoder(console.Output())
	defer enc.Close()
	return enc.Encode(v)
}
