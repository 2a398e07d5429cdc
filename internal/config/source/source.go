package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/styl-labs/styld/internal/config"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	markerFilename    = ".styld-downloaded"
	partSuffix        = ".part"
)

// Downloader fetches a model artifact into the local cache.
// It returns the artifact path and whether the cache was already warm.
type Downloader interface {
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (path string, cached bool, err error)
}

// GetDownloader returns the downloader for a source type.
func GetDownloader(_ context.Context, sourceType config.SourceType) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeHTTP:
		return &HTTPDownloader{}, nil
	case config.SourceTypeHuggingFace:
		return &HuggingFaceDownloader{}, nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}

// EnsureModelsDirectory creates the models directory if it does not exist.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	return nil
}
