package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sensord/adapter"
	"github.com/mklimuk/sensord/cmd/sensord/console"
)

var adapterCmd = cli.Command{
	Name:    "adapter",
	Aliases: []string{"usb"},
	Usage:   "USB-I2C bridge tools",
	Subcommands: cli.Commands{
		&adapterLsCmd,
		&adapterDetectCmd,
		&adapterStatusCmd,
		&adapterReleaseCmd,
		&adapterGPIOCmd,
	},
}

var adapterLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list HID devices",
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(0, 0)

		w := tabwriter.NewWriter(console.Writer(), 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		_ = w.Flush()
		return nil
	},
}

var adapterDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list attached bridges supported by sensord",
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(adapter.VendorID, adapter.ProductID)
		if len(devices) == 0 {
			console.Warnf("no MCP2221 bridge found")
			return nil
		}
		w := tabwriter.NewWriter(console.Writer(), 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "INDEX\tVENDOR\tPRODUCT\tSERIAL\tDEVICE\n")
		for i, dev := range devices {
			_, _ = fmt.Fprintf(w, "%d\t%#x\t%#x\t%s\tMCP2221\n", i, dev.VendorID, dev.ProductID, dev.Serial)
		}
		_ = w.Flush()
		return nil
	},
}

var indexFlag = &cli.IntFlag{
	Name:    "index",
	Aliases: []string{"i"},
	Value:   -1,
	Usage:   "bridge index as listed by detect, -1 picks the first one",
}

var adapterStatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the MCP2221 I2C engine status",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		ctx := c.Context
		status, err := a.Status(ctx)
		if err != nil {
			return console.ExitErr(console.ExitFailure, "adapter communication error", err)
		}
		return encodeYAML(status)
	},
}

var adapterReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a stuck I2C transfer",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		ctx := c.Context
		status, err := a.ReleaseBus(ctx)
		if err != nil {
			return console.ExitErr(console.ExitFailure, "adapter communication error", err)
		}
		return encodeYAML(status)
	},
}

var adapterGPIOCmd = cli.Command{
	Name:  "gpio",
	Usage: "print the MCP2221 GP pin settings",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		ctx := c.Context
		params, err := a.GetGPIOParameters(ctx)
		if err != nil {
			return console.ExitErr(console.ExitFailure, "adapter communication error", err)
		}
		return encodeYAML(params)
	},
}

func encodeYAML(v any) error {
	enc := yaml.NewEncoder(console.Writer())
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(v); err != nil {
		return console.ExitErr(console.ExitFailure, "encoding error", err)
	}
	return nil
}
