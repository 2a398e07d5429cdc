package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/styl-labs/styld/internal/backend"
	"github.com/styl-labs/styld/internal/backend/chroma"
	"github.com/styl-labs/styld/internal/backend/rembg"
	"github.com/styl-labs/styld/internal/config"
	"github.com/styl-labs/styld/internal/envvar"
	"github.com/styl-labs/styld/internal/model"
	httpserver "github.com/styl-labs/styld/internal/server/http"
	"github.com/styl-labs/styld/internal/service"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the styld HTTP server",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "bind address, overrides config",
			EnvVars: []string{envvar.StyldServerHTTPHost},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "listen port, overrides config",
			EnvVars: []string{envvar.StyldServerHTTPPort},
		},
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := model.NewManager()

	cfg, err := watchConfig(c, manager)
	if err != nil {
		return err
	}

	if host := c.String("host"); host != "" {
		cfg.Server.HTTP.Host = host
	}
	if c.IsSet("port") {
		cfg.Server.HTTP.Port = c.Int("port")
	}

	if err := manager.LoadModelsFromConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load models from config: %w", err)
	}

	backends := backend.NewRegistry()
	defer backends.Close()

	if err := backends.Register(chroma.NewBackend(cfg.Backends.Chroma)); err != nil {
		return err
	}

	timeout := time.Duration(cfg.Backends.Rembg.TimeoutSeconds) * time.Second
	if rb, err := rembg.NewBackend(cfg.Backends.Rembg.BinPath, timeout); err != nil {
		slog.Warn("Rembg engine unavailable, models backed by it will not serve",
			"bin", cfg.Backends.Rembg.BinPath,
			"error", err,
		)
	} else if err := backends.Register(rb); err != nil {
		return err
	}

	stopJanitor, err := startJanitor(cfg, manager)
	if err != nil {
		return err
	}
	defer stopJanitor()

	images := service.NewImages(backends, manager)

	return httpserver.New(cfg, images, manager).Run(ctx)
}

// watchConfig loads the config and keeps the model manager in sync
// with file changes. A missing file falls back to the defaults.
func watchConfig(c *cli.Context, manager *model.Manager) (*config.Config, error) {
	path := c.String(flagConfig.Name)

	watcher, err := config.NewWatcher(path, c.String(flagSchema.Name), func(cfg *config.Config, err error) {
		if err != nil {
			return
		}
		if err := manager.LoadModelsFromConfig(context.Background(), cfg); err != nil {
			slog.Error("Failed to load models from config", "error", err)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("No config file found, using defaults", "path", path)
			return config.Default(), nil
		}
		return nil, err
	}

	slog.Info("Config loaded successfully", "config", path)
	return watcher.Snapshot(), nil
}

// startJanitor schedules removal of stale partial downloads.
func startJanitor(cfg *config.Config, manager *model.Manager) (func(), error) {
	schedule := cfg.Janitor.Schedule
	if schedule == "" {
		schedule = "@hourly"
	}

	maxAge := time.Duration(cfg.Janitor.MaxPartAgeHours) * time.Hour
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	cr := cron.New()
	_, err := cr.AddFunc(schedule, func() {
		removed, err := manager.PruneStaleParts(maxAge)
		if err != nil {
			slog.Error("Failed to prune stale downloads", "error", err)
			return
		}
		if removed > 0 {
			slog.Debug("Pruned stale downloads", "count", removed)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}

	cr.Start()
	return func() { cr.Stop() }, nil
}
