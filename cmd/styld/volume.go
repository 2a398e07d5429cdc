package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/styl-labs/styld/internal/volume"
)

var volumeCmd = &cli.Command{
	Name:  "volume",
	Usage: "manage storage volumes holding model weights",
	Subcommands: []*cli.Command{
		volumePutCmd,
		volumeGetCmd,
		volumeLsCmd,
		volumeRmCmd,
		volumeShellCmd,
	},
}

var volumePutCmd = &cli.Command{
	Name:      "put",
	Usage:     "upload a local file into a volume",
	ArgsUsage: "<volume> <local-path> <remote-path>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.Exit("usage: styld volume put <volume> <local-path> <remote-path>", 2)
		}

		store, err := openVolume(c, c.Args().Get(0))
		if err != nil {
			return err
		}

		return store.Put(c.Context, c.Args().Get(1), c.Args().Get(2))
	},
}

var volumeGetCmd = &cli.Command{
	Name:      "get",
	Usage:     "download an object from a volume",
	ArgsUsage: "<volume> <remote-path> <local-path>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.Exit("usage: styld volume get <volume> <remote-path> <local-path>", 2)
		}

		store, err := openVolume(c, c.Args().Get(0))
		if err != nil {
			return err
		}

		return store.Get(c.Context, c.Args().Get(1), c.Args().Get(2))
	},
}

var volumeLsCmd = &cli.Command{
	Name:      "ls",
	Usage:     "list objects in a volume",
	ArgsUsage: "<volume> [path]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "l", Usage: "long listing with sizes and times"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("usage: styld volume ls [-l] <volume> [path]", 2)
		}

		store, err := openVolume(c, c.Args().Get(0))
		if err != nil {
			return err
		}

		remotePath := "/"
		if c.NArg() > 1 {
			remotePath = c.Args().Get(1)
		}

		entries, err := store.List(c.Context, remotePath)
		if err != nil {
			return err
		}

		if c.Bool("l") {
			fmt.Fprint(c.App.Writer, volume.FormatLong(entries))
			return nil
		}

		for _, e := range entries {
			name := e.Name
			if e.Dir {
				name += "/"
			}
			fmt.Fprintln(c.App.Writer, name)
		}

		return nil
	},
}

var volumeRmCmd = &cli.Command{
	Name:      "rm",
	Usage:     "remove an object from a volume",
	ArgsUsage: "<volume> <remote-path>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.Exit("usage: styld volume rm <volume> <remote-path>", 2)
		}

		store, err := openVolume(c, c.Args().Get(0))
		if err != nil {
			return err
		}

		return store.Remove(c.Context, c.Args().Get(1))
	},
}

var volumeShellCmd = &cli.Command{
	Name:      "shell",
	Usage:     "open an interactive shell against a volume",
	ArgsUsage: "<volume>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("usage: styld volume shell <volume>", 2)
		}

		store, err := openVolume(c, c.Args().Get(0))
		if err != nil {
			return err
		}

		return volume.NewShell(store, os.Stdin, c.App.Writer).Run(c.Context)
	},
}

func openVolume(c *cli.Context, name string) (*volume.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return volume.Open(cfg, name)
}
