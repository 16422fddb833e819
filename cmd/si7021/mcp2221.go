package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/si7021/adapter"
	"github.com/mklimuk/si7021/cmd/si7021/console"
)

var deviceIndexFlag = &cli.IntFlag{
	Name:  "index",
	Usage: "bridge index as listed by usb detect, -1 when only one is attached",
	Value: -1,
}

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 bridge maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Flags: []cli.Flag{deviceIndexFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		status, err := a.Status(c.Context)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		if err := printYAML(status); err != nil {
			return console.Fail("encoding error", err)
		}
		return nil
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Flags: []cli.Flag{deviceIndexFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		status, err := a.ReleaseBus(c.Context)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		if err := printYAML(status); err != nil {
			return console.Fail("encoding error", err)
		}
		return nil
	},
}
