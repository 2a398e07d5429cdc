package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
version: "1"
server:
  http:
    host: 127.0.0.1
    port: 8000
storage:
  models_dir: /tmp/styld-models
models:
  u2net:
    source:
      http:
        url: https://example.com/u2net.onnx
        filename: u2net.onnx
    type: segmentation
    backend: rembg
services:
  images:
    models: [u2net]
volumes:
  hr-viton-weights: {}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	cfg, err := LoadAndValidate(path, "")
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.HTTP.Addr())
	assert.Equal(t, "/tmp/styld-models", cfg.Storage.ModelsDir)
	assert.Contains(t, cfg.Volumes, "hr-viton-weights")

	model, ok := cfg.Models["u2net"]
	require.True(t, ok)
	assert.Equal(t, "rembg", model.Backend)

	source, err := model.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeHTTP, source.Type())
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	_, err := LoadAndValidate(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestLoadAndValidateInvalidYAML(t *testing.T) {
	path := writeConfig(t, "version: [unterminated")

	_, err := LoadAndValidate(path, "")
	assert.ErrorContains(t, err, "invalid YAML")
}

func TestLoadAndValidateSchemaViolation(t *testing.T) {
	path := writeConfig(t, `
version: "1"
server:
  http:
    port: 99999
models: {}
services:
  images:
    models: []
`)

	_, err := LoadAndValidate(path, "")
	assert.ErrorContains(t, err, "validation failed")
}

func TestLoadAndValidateUnknownModelReference(t *testing.T) {
	path := writeConfig(t, `
version: "1"
models: {}
services:
  images:
    models: [ghost]
`)

	_, err := LoadAndValidate(path, "")
	assert.ErrorContains(t, err, `unknown model "ghost"`)
}

func TestGetSourceExactlyOne(t *testing.T) {
	var m ModelConfig

	_, err := m.GetSource()
	assert.Error(t, err)

	m.SetHTTPSource(HTTPSource{URL: "https://example.com/a.onnx"})
	source, err := m.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeHTTP, source.Type())

	var hf ModelConfig
	hf.SetHuggingFaceSource(HuggingFaceSource{Repo: "styl/segmenter"})
	source, err = hf.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeHuggingFace, source.Type())
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.HTTP.Addr())
	assert.Contains(t, cfg.Models, DefaultModelID)
	assert.Contains(t, cfg.Volumes, DefaultTryOnVolume)
	assert.Equal(t, []string{DefaultModelID}, cfg.Services.Images.Models)

	model := cfg.Models[DefaultModelID]
	require.NotNil(t, model.Source.HTTP)
	assert.Equal(t, DefaultModelURL, model.Source.HTTP.URL)
}
