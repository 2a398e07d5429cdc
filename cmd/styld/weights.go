package main

import (
	"github.com/urfave/cli/v2"

	"github.com/styl-labs/styld/internal/tryon"
)

var weightsCmd = &cli.Command{
	Name:  "weights",
	Usage: "verify virtual try-on checkpoints",
	Subcommands: []*cli.Command{
		weightsCheckCmd,
	},
}

var weightsCheckCmd = &cli.Command{
	Name:  "check",
	Usage: "check the try-on volume for the required weight files",
	Action: func(c *cli.Context) error {
		store, err := openVolume(c, tryon.VolumeName)
		if err != nil {
			return err
		}

		report, err := tryon.CheckWeights(c.Context, store)
		if err != nil {
			return err
		}

		report.Render(c.App.Writer)

		if !report.Complete() {
			return cli.Exit("", 1)
		}
		return nil
	},
}
