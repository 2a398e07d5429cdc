package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styl-labs/styld/internal/backend"
	"github.com/styl-labs/styld/internal/config"
	"github.com/styl-labs/styld/internal/imgutil"
	"github.com/styl-labs/styld/internal/model"
)

// stubBackend records the inference request it receives and plays back
// a canned response.
type stubBackend struct {
	provider backend.BackendProvider
	gotPath  string
	gotInput []byte
	resp     *backend.Response
	err      error
}

func (s *stubBackend) Provider() backend.BackendProvider { return s.provider }

func (s *stubBackend) Infer(_ context.Context, req *backend.Request) (*backend.Response, error) {
	s.gotPath = req.ModelPath
	if req.Input != nil {
		s.gotInput, _ = io.ReadAll(req.Input)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubBackend) Close() error { return nil }

// locatorBackend additionally resolves artifact directories.
type locatorBackend struct {
	stubBackend
	gotBase string
}

func (l *locatorBackend) ResolveModelPath(basePath string) (string, error) {
	l.gotBase = basePath
	return filepath.Join(basePath, "resolved.onnx"), nil
}

func chromaOnlyConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Version: "1",
		Storage: config.StorageConfig{ModelsDir: t.TempDir()},
		Models: map[string]config.ModelConfig{
			"cutout": {Type: "segmentation", Backend: "chroma"},
		},
		Services: config.ServicesConfig{
			Images: config.ServicesConfigAssignment{Models: []string{"cutout"}},
		},
	}
}

func newImagesService(t *testing.T, cfg *config.Config, b backend.Backend) (*Images, *model.Manager) {
	t.Helper()

	backends := backend.NewRegistry()
	require.NoError(t, backends.Register(b))

	manager := model.NewManager()
	require.NoError(t, manager.LoadModelsFromConfig(context.Background(), cfg))

	return NewImages(backends, manager), manager
}

func TestRemoveBackgroundUsesAssignedModel(t *testing.T) {
	stub := &stubBackend{
		provider: backend.BackendProviderChroma,
		resp:     &backend.Response{Output: bytes.NewReader([]byte("png bytes"))},
	}
	svc, _ := newImagesService(t, chromaOnlyConfig(t), stub)

	input := []byte("raw upload")
	resp, err := svc.RemoveBackground(context.Background(), "", &backend.Request{
		Input: bytes.NewReader(input),
	})
	require.NoError(t, err)

	assert.Equal(t, input, stub.gotInput)
	assert.Empty(t, stub.gotPath)

	out, err := io.ReadAll(resp.Output)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), out)
}

func TestRemoveBackgroundFetchesArtifactOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("segmentation weights"))
	}))
	t.Cleanup(server.Close)

	cfg := chromaOnlyConfig(t)
	modelConfig := config.ModelConfig{Type: "segmentation", Backend: "rembg"}
	modelConfig.SetHTTPSource(config.HTTPSource{URL: server.URL + "/u2net.onnx"})
	cfg.Models["u2net"] = modelConfig
	cfg.Services.Images.Models = []string{"u2net"}

	stub := &stubBackend{
		provider: backend.BackendProviderRembg,
		resp:     &backend.Response{Output: bytes.NewReader(nil)},
	}
	svc, _ := newImagesService(t, cfg, stub)

	_, err := svc.RemoveBackground(context.Background(), "", &backend.Request{Input: bytes.NewReader(nil)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.FileExists(t, stub.gotPath)
	assert.Equal(t, "u2net.onnx", filepath.Base(stub.gotPath))

	// The second request reuses the cached artifact.
	_, err = svc.RemoveBackground(context.Background(), "", &backend.Request{Input: bytes.NewReader(nil)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRemoveBackgroundResolvesArtifactDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("segmentation weights"))
	}))
	t.Cleanup(server.Close)

	cfg := chromaOnlyConfig(t)
	modelConfig := config.ModelConfig{Type: "segmentation", Backend: "rembg"}
	modelConfig.SetHTTPSource(config.HTTPSource{URL: server.URL + "/u2net.onnx"})
	cfg.Models["u2net"] = modelConfig
	cfg.Services.Images.Models = []string{"u2net"}

	locator := &locatorBackend{stubBackend: stubBackend{
		provider: backend.BackendProviderRembg,
		resp:     &backend.Response{Output: bytes.NewReader(nil)},
	}}
	svc, manager := newImagesService(t, cfg, locator)

	_, err := svc.RemoveBackground(context.Background(), "u2net", &backend.Request{Input: bytes.NewReader(nil)})
	require.NoError(t, err)

	want, err := manager.Ensure(context.Background(), "u2net")
	require.NoError(t, err)
	assert.Equal(t, want, locator.gotBase)
	assert.Equal(t, filepath.Join(want, "resolved.onnx"), locator.gotPath)
}

func TestRemoveBackgroundCropsToSubject(t *testing.T) {
	cutout := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			cutout.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	data, err := imgutil.EncodePNG(cutout)
	require.NoError(t, err)

	stub := &stubBackend{
		provider: backend.BackendProviderChroma,
		resp: &backend.Response{
			Output:   bytes.NewReader(data),
			Metadata: &backend.ResponseMetadata{OutputBytes: int64(len(data))},
		},
	}
	svc, _ := newImagesService(t, chromaOnlyConfig(t), stub)

	resp, err := svc.RemoveBackground(context.Background(), "", &backend.Request{
		Input:      bytes.NewReader(nil),
		Parameters: map[string]any{"crop": true},
	})
	require.NoError(t, err)

	out, err := io.ReadAll(resp.Output)
	require.NoError(t, err)

	cropped, format, err := imgutil.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 20, cropped.Bounds().Dx())
	assert.Equal(t, 20, cropped.Bounds().Dy())
	assert.Equal(t, int64(len(out)), resp.Metadata.OutputBytes)
}

func TestRemoveBackgroundCropSkipsOpaque(t *testing.T) {
	opaque := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 255
	}
	data, err := imgutil.EncodePNG(opaque)
	require.NoError(t, err)

	stub := &stubBackend{
		provider: backend.BackendProviderChroma,
		resp:     &backend.Response{Output: bytes.NewReader(data)},
	}
	svc, _ := newImagesService(t, chromaOnlyConfig(t), stub)

	resp, err := svc.RemoveBackground(context.Background(), "", &backend.Request{
		Input:      bytes.NewReader(nil),
		Parameters: map[string]any{"crop": true},
	})
	require.NoError(t, err)

	out, err := io.ReadAll(resp.Output)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestRemoveBackgroundUnknownModel(t *testing.T) {
	stub := &stubBackend{provider: backend.BackendProviderChroma}
	svc, _ := newImagesService(t, chromaOnlyConfig(t), stub)

	_, err := svc.RemoveBackground(context.Background(), "ghost", &backend.Request{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRemoveBackgroundNoAssignment(t *testing.T) {
	cfg := chromaOnlyConfig(t)
	cfg.Services.Images.Models = nil
	cfg.Models = map[string]config.ModelConfig{}

	stub := &stubBackend{provider: backend.BackendProviderChroma}
	svc, _ := newImagesService(t, cfg, stub)

	_, err := svc.RemoveBackground(context.Background(), "", &backend.Request{})
	assert.ErrorIs(t, err, ErrNoModelAssigned)
}

func TestRemoveBackgroundMissingBackend(t *testing.T) {
	cfg := chromaOnlyConfig(t)
	cfg.Models["cutout"] = config.ModelConfig{Type: "segmentation", Backend: "rembg"}

	stub := &stubBackend{provider: backend.BackendProviderChroma}
	svc, _ := newImagesService(t, cfg, stub)

	_, err := svc.RemoveBackground(context.Background(), "", &backend.Request{})
	assert.ErrorIs(t, err, backend.ErrNotFound)
}
