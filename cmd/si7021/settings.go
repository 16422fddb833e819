package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/si7021"
	"github.com/mklimuk/si7021/cmd/si7021/console"
	"github.com/mklimuk/si7021/pkg/config"
)

var registerFlag = &cli.StringFlag{
	Name:    "register",
	Aliases: []string{"r"},
	Usage:   "user or heater",
	Value:   "user",
}

var registerCmd = cli.Command{
	Name:  "register",
	Usage: "raw access to the user and heater control registers",
	Subcommands: cli.Commands{
		{
			Name:  "get",
			Flags: []cli.Flag{registerFlag},
			Action: func(c *cli.Context) error {
				reg, err := si7021.ParseRegister(c.String("register"))
				if err != nil {
					return console.Exit(console.ExitBadRequest, "%s", console.Red(err))
				}
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					val, err := sensor.AskForRegisterData(c.Context, reg)
					if err != nil {
						return console.Fail("register read error", err)
					}
					console.Printf("%s: %s (%08b)\n", reg, console.White(fmt.Sprintf("0x%02x", val)), val)
					return nil
				})
			},
		},
		{
			Name:      "set",
			ArgsUsage: "<value>",
			Flags: []cli.Flag{
				registerFlag,
				&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
			},
			Action: func(c *cli.Context) error {
				reg, err := si7021.ParseRegister(c.String("register"))
				if err != nil {
					return console.Exit(console.ExitBadRequest, "%s", console.Red(err))
				}
				val, err := parseByte(c.Args().First())
				if err != nil {
					return console.Exit(console.ExitBadRequest, "invalid register value %q: %s", c.Args().First(), console.Red(err))
				}
				if !c.Bool("yes") {
					ok, err := console.Confirm(fmt.Sprintf("write 0x%02x to %s register?", val, reg))
					if err != nil || !ok {
						return console.Exit(console.ExitNotApplied, "%s aborted", console.PictoStop)
					}
				}
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					return reportApplied(sensor.SetRegister(c.Context, val, reg))
				})
			},
		},
		{
			Name:  "reset",
			Usage: "write the register default value",
			Flags: []cli.Flag{registerFlag},
			Action: func(c *cli.Context) error {
				reg, err := si7021.ParseRegister(c.String("register"))
				if err != nil {
					return console.Exit(console.ExitBadRequest, "%s", console.Red(err))
				}
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					return reportApplied(sensor.ResetRegister(c.Context, reg))
				})
			},
		},
	},
}

var resolutionCmd = cli.Command{
	Name:  "resolution",
	Usage: "measurement resolution",
	Subcommands: cli.Commands{
		{
			Name: "get",
			Action: func(c *cli.Context) error {
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					res, err := sensor.AskForResolution(c.Context)
					if err != nil {
						return console.Fail("resolution read error", err)
					}
					console.Printf("%s (RH %d bit, T %d bit)\n", console.White(res), res.HumidityBits(), res.TemperatureBits())
					return nil
				})
			},
		},
		{
			Name:      "set",
			ArgsUsage: "<RH12T14|RH08T12|RH10T13|RH11T11>",
			Action: func(c *cli.Context) error {
				res, err := si7021.ParseResolution(c.Args().First())
				if err != nil {
					return console.Exit(console.ExitBadRequest, "%s", console.Red(err))
				}
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					return reportApplied(sensor.SetResolution(c.Context, res))
				})
			},
		},
	},
}

var heaterCmd = cli.Command{
	Name:  "heater",
	Usage: "on-chip heater control",
	Subcommands: cli.Commands{
		{
			Name: "get",
			Action: func(c *cli.Context) error {
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					on, err := sensor.AskForHeater(c.Context)
					if err != nil {
						return console.Fail("heater read error", err)
					}
					level, err := sensor.AskForHeaterConfig(c.Context)
					if err != nil {
						return console.Fail("heater level read error", err)
					}
					console.Printf("heater %s, level %s (%.2f mA)\n", onOff(on), console.White(level), level.Current())
					return nil
				})
			},
		},
		{
			Name: "on",
			Action: func(c *cli.Context) error {
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					return switchHeater(c, sensor, true)
				})
			},
		},
		{
			Name: "off",
			Action: func(c *cli.Context) error {
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					return switchHeater(c, sensor, false)
				})
			},
		},
		{
			Name:      "level",
			ArgsUsage: "<0-15|bbbb>",
			Action: func(c *cli.Context) error {
				level, err := si7021.ParseHeaterConfig(c.Args().First())
				if err != nil {
					return console.Exit(console.ExitBadRequest, "%s", console.Red(err))
				}
				return withSensor(c, func(sensor *si7021.Si7021, _ config.Config) error {
					return reportApplied(sensor.SetHeaterConfig(c.Context, level))
				})
			},
		},
	},
}

func switchHeater(c *cli.Context, sensor *si7021.Si7021, enable bool) error {
	if sensor.Heater() == enable {
		console.Infof("heater already %s", onOff(enable))
		return nil
	}
	return reportApplied(sensor.SetHeater(c.Context, enable))
}

func onOff(on bool) string {
	if on {
		return console.Green("on")
	}
	return console.Yellow("off")
}

func reportApplied(ok bool, err error) error {
	if err != nil {
		return console.Fail("write error", err)
	}
	if !ok {
		return console.Exit(console.ExitNotApplied, "%s", console.Red(errNotApplied))
	}
	console.Infof("%s", console.Green("applied"))
	return nil
}
