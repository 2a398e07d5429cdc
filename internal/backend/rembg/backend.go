// Package rembg drives an external segmentation engine binary. The
// engine reads the source image on stdin and writes the cutout PNG on
// stdout, loading the model artifact given with --model.
package rembg

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/styl-labs/styld/internal/backend"
	"github.com/styl-labs/styld/mapsafe"
)

const defaultTimeout = 2 * time.Minute

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Backend implements backend.Backend for an external rembg-style engine.
type Backend struct {
	executor *backend.Executor
}

// NewBackend creates a new rembg backend. It fails when the engine
// binary cannot be found on PATH or at the given location.
func NewBackend(binPath string, timeout time.Duration) (*Backend, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	executor, err := backend.NewExecutor(binPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("rembg engine %q: %w", binPath, err)
	}

	return &Backend{executor: executor}, nil
}

// NewBackendWithRunner creates a rembg backend with a custom command
// runner.
func NewBackendWithRunner(binPath string, timeout time.Duration, runner backend.CommandRunner) *Backend {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Backend{executor: backend.NewExecutorWithRunner(binPath, timeout, runner)}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderRembg
}

// Infer removes the background from the input image.
// Input: image bytes (PNG, JPEG or GIF).
// Output: PNG bytes with a transparent background.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	args := b.buildArgs(req)

	// The engine streams stdin to stdout.
	stdout, stderr, err := b.executor.Execute(ctx, args, req.Input)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}

	if !bytes.HasPrefix(stdout, pngMagic) {
		return nil, fmt.Errorf("engine did not produce a PNG\nstderr: %s", stderr)
	}

	return &backend.Response{
		Output: bytes.NewReader(stdout),
		Metadata: &backend.ResponseMetadata{
			Provider:    b.Provider(),
			Model:       req.ModelPath,
			Timestamp:   time.Now(),
			OutputBytes: int64(len(stdout)),
			BackendSpecific: map[string]any{
				"stderr": string(stderr),
				"args":   strings.Join(args, " "),
			},
		},
	}, nil
}

// buildArgs builds the engine command-line arguments.
func (b *Backend) buildArgs(req *backend.Request) []string {
	args := []string{"i"}

	if req.ModelPath != "" {
		args = append(args, "--model", req.ModelPath)
	}

	p := req.Parameters
	if p == nil {
		return args
	}

	if mapsafe.Get(p, "alpha_matting", false) {
		args = append(args, "--alpha-matting")
	}

	if mapsafe.Get(p, "post_process_mask", false) {
		args = append(args, "--post-process-mask")
	}

	args = append(args, mapsafe.GetStringSlice(p, "extra_args", nil)...)

	return args
}

// ResolveModelPath resolves the actual .onnx artifact under a
// downloaded model directory. File paths pass through unchanged.
func (b *Backend) ResolveModelPath(basePath string) (string, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return "", fmt.Errorf("model path not accessible: %w", err)
	}

	if !info.IsDir() {
		return basePath, nil
	}

	var found string
	err = filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found != "" || d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".onnx") {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if found == "" {
		return "", fmt.Errorf("no .onnx artifact under %s", basePath)
	}

	return found, nil
}

// Close cleans up resources. The engine runs per request, so there is
// nothing to clean up.
func (b *Backend) Close() error {
	return nil
}
