package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/styl-labs/styld/internal/model"
)

var modelsCmd = &cli.Command{
	Name:  "models",
	Usage: "inspect configured models",
	Subcommands: []*cli.Command{
		modelsLsCmd,
	},
}

var modelsLsCmd = &cli.Command{
	Name:  "ls",
	Usage: "list models and their status",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		manager := model.NewManager()
		if err := manager.LoadModelsFromConfig(c.Context, cfg); err != nil {
			return err
		}

		instances := manager.Registry().List()
		snapshots := make([]model.InstanceSnapshot, 0, len(instances))
		for _, instance := range instances {
			snapshots = append(snapshots, instance.Snapshot())
		}
		sort.Slice(snapshots, func(i, j int) bool {
			return snapshots[i].ID < snapshots[j].ID
		})

		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tBACKEND\tSTATUS\tPATH")
		for _, s := range snapshots {
			path := s.Path
			if path == "" {
				path = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Type, s.Backend, s.Status, path)
		}

		return w.Flush()
	},
}
