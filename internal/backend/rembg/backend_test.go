package rembg

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styl-labs/styld/internal/backend"
	"github.com/styl-labs/styld/internal/imgutil"
)

// fakeRunner records the command it was asked to run and plays back a
// canned result.
type fakeRunner struct {
	gotName  string
	gotArgs  []string
	gotStdin []byte

	stdout []byte
	stderr []byte
	err    error
}

func (r *fakeRunner) Run(_ context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	r.gotName = name
	r.gotArgs = args
	if stdin != nil {
		r.gotStdin, _ = io.ReadAll(stdin)
	}
	return r.stdout, r.stderr, r.err
}

func cutoutPNG(t *testing.T) []byte {
	t.Helper()

	data, err := imgutil.EncodePNG(image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	return data
}

func TestInferRunsEngine(t *testing.T) {
	runner := &fakeRunner{stdout: cutoutPNG(t)}
	b := NewBackendWithRunner("rembg", 0, runner)

	input := []byte("source image bytes")
	resp, err := b.Infer(context.Background(), &backend.Request{
		ModelPath:  "/models/u2net/u2net.onnx",
		Input:      bytes.NewReader(input),
		Parameters: map[string]any{"alpha_matting": true},
	})
	require.NoError(t, err)

	assert.Equal(t, "rembg", runner.gotName)
	assert.Equal(t, []string{"i", "--model", "/models/u2net/u2net.onnx", "--alpha-matting"}, runner.gotArgs)
	assert.Equal(t, input, runner.gotStdin)

	out, err := io.ReadAll(resp.Output)
	require.NoError(t, err)
	assert.Equal(t, runner.stdout, out)

	assert.Equal(t, backend.BackendProviderRembg, resp.Metadata.Provider)
	assert.Equal(t, "/models/u2net/u2net.onnx", resp.Metadata.Model)
	assert.Equal(t, int64(len(out)), resp.Metadata.OutputBytes)
}

func TestInferEngineFailure(t *testing.T) {
	runner := &fakeRunner{stderr: []byte("model file corrupt"), err: errors.New("exit status 1")}
	b := NewBackendWithRunner("rembg", time.Second, runner)

	_, err := b.Infer(context.Background(), &backend.Request{Input: bytes.NewReader(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "model file corrupt")
}

func TestInferRejectsNonPNGOutput(t *testing.T) {
	runner := &fakeRunner{stdout: []byte("usage: rembg ...")}
	b := NewBackendWithRunner("rembg", time.Second, runner)

	_, err := b.Infer(context.Background(), &backend.Request{Input: bytes.NewReader(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not produce a PNG")
}

func TestBuildArgs(t *testing.T) {
	b := NewBackendWithRunner("rembg", 0, &fakeRunner{})

	args := b.buildArgs(&backend.Request{})
	assert.Equal(t, []string{"i"}, args)

	args = b.buildArgs(&backend.Request{
		ModelPath: "/m/u2net.onnx",
		Parameters: map[string]any{
			"post_process_mask": true,
			"extra_args":        []any{"--size", "320"},
		},
	})
	assert.Equal(t, []string{"i", "--model", "/m/u2net.onnx", "--post-process-mask", "--size", "320"}, args)
}

func TestResolveModelPath(t *testing.T) {
	b := NewBackendWithRunner("rembg", 0, &fakeRunner{})

	dir := t.TempDir()
	nested := filepath.Join(dir, "onnx")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	artifact := filepath.Join(nested, "u2net.onnx")
	require.NoError(t, os.WriteFile(artifact, []byte("weights"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o644))

	// Directories resolve to the artifact inside them.
	resolved, err := b.ResolveModelPath(dir)
	require.NoError(t, err)
	assert.Equal(t, artifact, resolved)

	// File paths pass through.
	resolved, err = b.ResolveModelPath(artifact)
	require.NoError(t, err)
	assert.Equal(t, artifact, resolved)

	// A directory without artifacts is an error.
	_, err = b.ResolveModelPath(t.TempDir())
	assert.Error(t, err)

	_, err = b.ResolveModelPath(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestNewBackendMissingBinary(t *testing.T) {
	_, err := NewBackend("/definitely/not/installed/rembg", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/definitely/not/installed/rembg")
}
