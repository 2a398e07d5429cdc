package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/styl-labs/styld/internal/config"
	"github.com/styl-labs/styld/internal/xfs"
)

// HTTPDownloader downloads a model artifact from a direct HTTP(S) URL.
type HTTPDownloader struct {
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Download fetches the artifact into the local cache. The artifact is
// streamed to a temporary .part file, checksummed when a digest is
// configured, and atomically renamed into place. A marker file records
// the source so later calls skip the network entirely.
func (d *HTTPDownloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	httpSource, ok := source.(config.HTTPSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	filename, err := artifactFilename(httpSource)
	if err != nil {
		return "", false, err
	}

	fullPath := filepath.Join(targetDir, strings.TrimSuffix(filename, filepath.Ext(filename)))
	artifactPath := filepath.Join(fullPath, filename)
	markerPath := filepath.Join(fullPath, markerFilename)
	markerContent := d.markerContent(httpSource.URL, httpSource.SHA256)

	if !httpSource.ForceDownload {
		if _, err := os.Stat(markerPath); err == nil {
			if !shouldRedownload(markerPath, markerContent) {
				if _, err := os.Stat(artifactPath); err == nil {
					slog.Info("Artifact already downloaded and up-to-date (marker match), skipping", "url", httpSource.URL, "path", artifactPath)
					return artifactPath, true, nil
				}
			}
		}
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	var lastErr error
	for attempt := range defaultMaxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "url", httpSource.URL, "attempt", attempt+1, "last_error", lastErr)
			time.Sleep(defaultRetryDelay)
		} else {
			slog.Info("Downloading artifact", "url", httpSource.URL, "path", artifactPath)
		}

		written, err := d.fetch(ctx, httpSource, artifactPath)
		if err == nil {
			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			} else {
				slog.Info("Download marker updated", "path", markerPath)
			}

			slog.Info("Artifact downloaded successfully", "url", httpSource.URL, "path", artifactPath, "size", xfs.HumanSize(written), "attempt", attempt+1)
			return artifactPath, false, nil
		}

		lastErr = err
		slog.Error("Failed to download artifact", "url", httpSource.URL, "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			return "", false, fmt.Errorf("download canceled: %w", err)
		}
	}

	return "", false, lastErr
}

// fetch performs a single download attempt and returns the bytes written.
func (d *HTTPDownloader) fetch(ctx context.Context, httpSource config.HTTPSource, artifactPath string) (int64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, httpSource.URL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	partPath := artifactPath + partSuffix
	part, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create part file: %w", err)
	}

	digest := sha256.New()
	written, err := io.Copy(io.MultiWriter(part, digest), resp.Body)
	if err != nil {
		part.Close()
		os.Remove(partPath)
		return 0, fmt.Errorf("failed to stream artifact: %w", err)
	}

	if err := part.Sync(); err != nil {
		part.Close()
		os.Remove(partPath)
		return 0, fmt.Errorf("failed to sync part file: %w", err)
	}
	if err := part.Close(); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("failed to close part file: %w", err)
	}

	if written == 0 {
		os.Remove(partPath)
		return 0, errors.New("empty artifact body")
	}

	if httpSource.SHA256 != "" {
		got := hex.EncodeToString(digest.Sum(nil))
		if !strings.EqualFold(got, httpSource.SHA256) {
			os.Remove(partPath)
			return 0, fmt.Errorf("checksum mismatch: got %s, want %s", got, httpSource.SHA256)
		}
	}

	if err := os.Rename(partPath, artifactPath); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("failed to finalize artifact: %w", err)
	}

	return written, nil
}

func (d *HTTPDownloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}

	return http.DefaultClient
}

// markerContent generates the expected content of the marker file.
// Used to detect if we need to redownload due to config change.
func (d *HTTPDownloader) markerContent(url, sha string) string {
	return fmt.Sprintf("url: %s\nsha256: %s\n", url, sha)
}

// artifactFilename resolves the on-disk artifact name from the source.
func artifactFilename(httpSource config.HTTPSource) (string, error) {
	if httpSource.Filename != "" {
		return httpSource.Filename, nil
	}

	parsed, err := url.Parse(httpSource.URL)
	if err != nil {
		return "", fmt.Errorf("invalid artifact URL: %w", err)
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("cannot derive artifact filename from URL %s", httpSource.URL)
	}

	return name, nil
}

// shouldRedownload checks if the artifact should be redownloaded by comparing marker content.
func shouldRedownload(markerPath, expectedContent string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		slog.Debug("Marker file missing or unreadable", "path", markerPath, "error", err)
		return true
	}

	if string(content) != expectedContent {
		slog.Info("Artifact source changed (marker mismatch), will redownload",
			"marker_path", markerPath,
			"expected_snippet", expectedContent,
			"actual_snippet", string(content))
		return true
	}

	return false
}
