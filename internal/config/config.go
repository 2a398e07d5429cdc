package config

import (
	"errors"
	"fmt"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeHTTP represents a direct HTTP(S) artifact source.
	SourceTypeHTTP SourceType = "http"

	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// Config holds the main configuration for the application.
type Config struct {
	Version  string                  `json:"version"            yaml:"version"`
	Server   ServerConfig            `json:"server,omitempty"   yaml:"server,omitempty"`
	Storage  StorageConfig           `json:"storage,omitempty"  yaml:"storage,omitempty"`
	Backends BackendsConfig          `json:"backends,omitempty" yaml:"backends,omitempty"`
	Models   map[string]ModelConfig  `json:"models"             yaml:"models"`
	Services ServicesConfig          `json:"services"           yaml:"services"`
	Volumes  map[string]VolumeConfig `json:"volumes,omitempty"  yaml:"volumes,omitempty"`
	Janitor  JanitorConfig           `json:"janitor,omitempty"  yaml:"janitor,omitempty"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	HTTP HTTPConfig `json:"http,omitempty" yaml:"http,omitempty"`
	CORS CORSConfig `json:"cors,omitempty" yaml:"cors,omitempty"`
}

// HTTPConfig holds the HTTP listener configuration.
type HTTPConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// Addr returns the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	host := h.Host
	if host == "" {
		host = DefaultHTTPHost
	}

	port := h.Port
	if port == 0 {
		port = DefaultHTTPPort()
	}

	return fmt.Sprintf("%s:%d", host, port)
}

// CORSConfig holds cross-origin settings for the HTTP server.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// StorageConfig holds configuration for caching and auto-download.
type StorageConfig struct {
	ModelsDir  string `json:"models_dir,omitempty"  yaml:"models_dir,omitempty"`
	VolumesDir string `json:"volumes_dir,omitempty" yaml:"volumes_dir,omitempty"`
}

// BackendsConfig holds per-provider backend settings.
type BackendsConfig struct {
	Rembg  RembgConfig  `json:"rembg,omitempty"  yaml:"rembg,omitempty"`
	Chroma ChromaConfig `json:"chroma,omitempty" yaml:"chroma,omitempty"`
}

// RembgConfig configures the external segmentation engine.
type RembgConfig struct {
	BinPath        string `json:"bin_path,omitempty"        yaml:"bin_path,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// ChromaConfig configures the in-process color segmenter.
type ChromaConfig struct {
	Colors        int     `json:"colors,omitempty"         yaml:"colors,omitempty"`
	FeatherRadius float64 `json:"feather_radius,omitempty" yaml:"feather_radius,omitempty"`
	Threshold     float64 `json:"threshold,omitempty"      yaml:"threshold,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Source  SourceConfig `json:"source"  yaml:"source"`
	Type    string       `json:"type"    yaml:"type"`
	Backend string       `json:"backend" yaml:"backend"`
	Tags    []string     `json:"tags"    yaml:"tags"`
	Order   int          `json:"order"   yaml:"order"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HTTP        *HTTPSource        `json:"http,omitempty"        yaml:"http,omitempty"`
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// ServicesConfig holds configuration for all services.
type ServicesConfig struct {
	Images ServicesConfigAssignment `json:"images" yaml:"images"`
}

// ServicesConfigAssignment holds model assignments for a service.
type ServicesConfigAssignment struct {
	Models []string `json:"models" yaml:"models"` // List of model IDs
}

// VolumeConfig describes a named remote storage volume.
// An empty URL resolves to a local directory under the volumes dir.
type VolumeConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// JanitorConfig schedules background cache maintenance.
type JanitorConfig struct {
	Schedule        string `json:"schedule,omitempty"          yaml:"schedule,omitempty"`
	MaxPartAgeHours int    `json:"max_part_age_hours,omitempty" yaml:"max_part_age_hours,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ErrNoSource is returned for models that declare no artifact source.
var ErrNoSource = errors.New("no source configured for model")

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// HTTPSource represents a direct HTTP(S) artifact download source.
type HTTPSource struct {
	URL           string `json:"url"                      yaml:"url"`
	SHA256        string `json:"sha256,omitempty"         yaml:"sha256,omitempty"`
	Filename      string `json:"filename,omitempty"       yaml:"filename,omitempty"`
	ForceDownload bool   `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the HTTP source type.
func (h HTTPSource) Type() SourceType {
	return SourceTypeHTTP
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	if m.Source.HTTP != nil {
		return *m.Source.HTTP, nil
	}
	if m.Source.HuggingFace != nil {
		return *m.Source.HuggingFace, nil
	}

	return nil, ErrNoSource
}

// SetHTTPSource sets the HTTP source.
func (m *ModelConfig) SetHTTPSource(source HTTPSource) {
	m.Source.HTTP = &source
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source.HuggingFace = &source
}

// Validate checks cross-references the JSON schema cannot express.
func (c *Config) Validate() error {
	for _, modelID := range c.Services.Images.Models {
		modelConfig, ok := c.Models[modelID]
		if !ok {
			return fmt.Errorf("config: service images references unknown model %q", modelID)
		}
		if modelConfig.Backend == "" {
			return fmt.Errorf("config: model %q has no backend assigned", modelID)
		}
	}

	return nil
}
