package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/styl-labs/styld/internal/config"
	"github.com/styl-labs/styld/internal/env"
	"github.com/styl-labs/styld/internal/envvar"
	"github.com/styl-labs/styld/internal/logger"
)

var flagConfig = &cli.StringFlag{
	Name:    "config",
	Usage:   "path to the config file",
	Value:   filepath.Join(config.DefaultConfigPath(), "config.yaml"),
	EnvVars: []string{envvar.StyldConfig},
}

var flagSchema = &cli.StringFlag{
	Name:    "schema",
	Usage:   "path to the config schema, empty uses the embedded one",
	EnvVars: []string{envvar.StyldSchema},
}

var flagLogFile = &cli.StringFlag{
	Name:    "log-file",
	Usage:   "also write logs to this file",
	EnvVars: []string{envvar.StyldLogFile},
}

var flagEnv = &cli.StringFlag{
	Name:    "env",
	Usage:   "runtime environment (development, production, test)",
	EnvVars: []string{envvar.StyldEnv},
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "styld",
		Usage: "background removal service and model tooling",
		Flags: []cli.Flag{
			flagConfig,
			flagSchema,
			flagLogFile,
			flagEnv,
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			serveCmd,
			volumeCmd,
			weightsCmd,
			modelsCmd,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func setupLogger(c *cli.Context) error {
	environment := env.FromEnv()
	if raw := c.String(flagEnv.Name); raw != "" {
		environment = env.Parse(raw)
	}

	var opts []logger.Option
	if logFile := c.String(flagLogFile.Name); logFile != "" {
		opts = append(opts, logger.WithLogToFile(true), logger.WithLogFile(logFile))
	}

	slog.SetDefault(logger.New(environment, opts...))
	return nil
}

// loadConfig reads the configured file, falling back to the built-in
// defaults when none exists yet.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig.Name)

	cfg, err := config.LoadAndValidate(path, c.String(flagSchema.Name))
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("No config file found, using defaults", "path", path)
		return config.Default(), nil
	}

	return nil, err
}
