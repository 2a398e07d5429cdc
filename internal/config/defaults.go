package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	// DefaultHTTPHost is the default bind address for the HTTP server.
	DefaultHTTPHost = "127.0.0.1"

	// DefaultModelID is the model served by the images service when no
	// config file is present.
	DefaultModelID = "u2net"

	// DefaultModelURL is the published location of the pretrained
	// segmentation artifact (~176 MB).
	DefaultModelURL = "https://github.com/danielgatis/rembg/releases/download/v0.0.0/u2net.onnx"

	// DefaultTryOnVolume is the volume holding the virtual try-on weights.
	DefaultTryOnVolume = "hr-viton-weights"
)

// DefaultHTTPPort returns the default port for the HTTP server.
func DefaultHTTPPort() int {
	return 8000
}

// DefaultConfigPath returns the default path for the styld config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "styld", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "styld")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "styld")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "styld")
		}
		return filepath.Join(home, ".config", "styld")
	}
}

// DefaultModelsPath returns the default path for the styld models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "styld", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "styld", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "styld", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "styld", "models")
		}
		return filepath.Join(home, ".cache", "styld", "models")
	}
}

// DefaultVolumesPath returns the default root for locally backed volumes.
func DefaultVolumesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "styld", "volumes")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "styld", "volumes")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "styld", "volumes")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "styld", "volumes")
		}
		return filepath.Join(home, ".local", "share", "styld", "volumes")
	}
}

// Default returns the built-in configuration used when no config file
// exists yet. It serves the background-removal endpoint with the u2net
// artifact fetched on first use.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			HTTP: HTTPConfig{
				Host: DefaultHTTPHost,
				Port: DefaultHTTPPort(),
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
		},
		Backends: BackendsConfig{
			Rembg: RembgConfig{
				BinPath:        "rembg",
				TimeoutSeconds: 120,
			},
			Chroma: ChromaConfig{
				Colors:        4,
				FeatherRadius: 2,
				Threshold:     0.18,
			},
		},
		Models: map[string]ModelConfig{
			DefaultModelID: {
				Source: SourceConfig{
					HTTP: &HTTPSource{
						URL:      DefaultModelURL,
						Filename: "u2net.onnx",
					},
				},
				Type:    "segmentation",
				Backend: "rembg",
			},
		},
		Services: ServicesConfig{
			Images: ServicesConfigAssignment{
				Models: []string{DefaultModelID},
			},
		},
		Volumes: map[string]VolumeConfig{
			DefaultTryOnVolume: {},
		},
		Janitor: JanitorConfig{
			Schedule:        "@hourly",
			MaxPartAgeHours: 24,
		},
	}
}
