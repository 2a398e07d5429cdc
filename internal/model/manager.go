package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/styl-labs/styld/internal/config"
	"github.com/styl-labs/styld/internal/config/source"
	"github.com/styl-labs/styld/internal/envvar"
	"github.com/styl-labs/styld/internal/xfs"
)

// Manager orchestrates model lifecycle. Registration happens at config
// load time; artifacts are fetched lazily on first use so startup never
// blocks on the network.
type Manager struct {
	registry   *Registry
	modelsPath string
	mu         sync.RWMutex
	group      singleflight.Group
}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry
}

// ModelsPath returns the resolved models directory.
func (m *Manager) ModelsPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.modelsPath
}

// LoadModelsFromConfig registers models from the config and updates the
// registry. No artifact is downloaded here; the first request that
// needs a model triggers the fetch through Ensure.
func (m *Manager) LoadModelsFromConfig(ctx context.Context, config *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registry = NewRegistry(config)

	assignedModels := make(map[string]bool)
	for _, model := range config.Services.Images.Models {
		assignedModels[model] = true
	}

	modelsPath := resolveModelsPath(config)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}
	m.modelsPath = modelsPath

	loadedKeys := make(map[string]bool)
	for modelID := range assignedModels {
		modelConfig, ok := config.Models[modelID]
		if !ok {
			slog.Warn("Model not found in config", "model_id", modelID)
			continue
		}

		instance := NewModelInstance(&modelConfig, modelID)
		loadedKeys[modelID] = true
		m.registry.Set(instance)

		slog.Info("Model registered", "model_id", modelID, "backend", modelConfig.Backend, "status", instance.Status())
	}

	// Delete unassigned models from the registry (if any)
	current := m.registry.List()
	for _, instance := range current {
		if !loadedKeys[instance.ID] {
			m.registry.Delete(instance.ID)
			slog.Info("Model unregistered", "model_entry", instance.ID)
		}
	}

	return nil
}

// Ensure makes the artifact for modelID available locally and returns
// its path. The first caller performs the download; concurrent callers
// for the same model share that single download. Models without a
// configured source need no artifact and resolve to an empty path.
func (m *Manager) Ensure(ctx context.Context, modelID string) (string, error) {
	m.mu.RLock()
	registry := m.registry
	modelsPath := m.modelsPath
	m.mu.RUnlock()

	if registry == nil {
		return "", ErrNotFound
	}

	instance, ok := registry.Get(modelID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, modelID)
	}

	if instance.Status() == ModelStatusReady {
		return instance.Path(), nil
	}

	path, err, _ := m.group.Do(modelID, func() (any, error) {
		// A concurrent caller may have finished while this one queued.
		if instance.Status() == ModelStatusReady {
			return instance.Path(), nil
		}

		modelSource, err := instance.Config.GetSource()
		if err != nil {
			if errors.Is(err, config.ErrNoSource) {
				instance.SetStatus(ModelStatusReady)
				slog.Info("Model needs no artifact", "model_id", modelID)
				return "", nil
			}
			return nil, fmt.Errorf("failed to get model source for %s: %w", modelID, err)
		}

		downloader, err := source.GetDownloader(ctx, modelSource.Type())
		if err != nil {
			return nil, fmt.Errorf("failed to get downloader for %s: %w", modelID, err)
		}

		instance.SetStatus(ModelStatusDownloading)

		downloadPath, cached, err := downloader.Download(ctx, instance.Config, modelsPath)
		if err != nil {
			instance.SetStatus(ModelStatusFailed)
			instance.SetError(err)
			return nil, fmt.Errorf("failed to download model %s into %s: %w", modelID, modelsPath, err)
		}

		instance.SetPath(downloadPath)
		instance.SetStatus(ModelStatusReady)

		slog.Info("Model artifact ready", "model_id", modelID, "path", downloadPath, "cached", cached)
		return downloadPath, nil
	})
	if err != nil {
		return "", err
	}

	return path.(string), nil
}

// PruneStaleParts removes interrupted download leftovers older than
// maxAge from the models directory and returns how many were removed.
func (m *Manager) PruneStaleParts(maxAge time.Duration) (int, error) {
	modelsPath := m.ModelsPath()
	if modelsPath == "" {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(modelsPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".part") {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				slog.Warn("Failed to remove stale part file", "path", path, "error", err)
				return nil
			}
			removed++
			slog.Debug("Removed stale part file", "path", path, "size", xfs.HumanSize(info.Size()))
		}

		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to scan models directory: %w", err)
	}

	return removed, nil
}

// resolveModelsPath returns the path to the models directory.
// Precedence:
// 1. STYLD_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func resolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.StyldModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
