// Package volume manages named storage volumes holding model weights
// and other large artifacts. A volume is backed by any URL scheme the
// storage layer understands, file and s3 among them.
package volume

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/viant/afs"
	aurl "github.com/viant/afs/url"
	_ "github.com/viant/afsc/s3"

	"github.com/styl-labs/styld/internal/config"
	"github.com/styl-labs/styld/internal/envvar"
	"github.com/styl-labs/styld/internal/xfs"
)

// Entry describes one object inside a volume.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
	Dir     bool
}

// Store gives access to a single named volume.
type Store struct {
	fs      afs.Service
	name    string
	baseURL string
}

// Open resolves the volume by name. Configured volumes use their URL,
// everything else lands under the local volumes directory.
func Open(cfg *config.Config, name string) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("volume name is required")
	}

	baseURL := ""
	if vc, ok := cfg.Volumes[name]; ok && vc.URL != "" {
		baseURL = strings.TrimRight(vc.URL, "/")
	} else {
		baseURL = "file://" + filepath.ToSlash(filepath.Join(resolveVolumesPath(cfg), name))
	}

	return &Store{
		fs:      afs.New(),
		name:    name,
		baseURL: baseURL,
	}, nil
}

// Name returns the volume name.
func (s *Store) Name() string {
	return s.name
}

// BaseURL returns the URL the volume is rooted at.
func (s *Store) BaseURL() string {
	return s.baseURL
}

// Put uploads a local file to the given path inside the volume,
// creating missing directories.
func (s *Store) Put(ctx context.Context, localPath, remotePath string) error {
	localPath = xfs.ExpandTilde(localPath)

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("local file not accessible: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	target := s.objectURL(remotePath)
	if parent := path.Dir(s.trim(remotePath)); parent != "." && parent != "/" {
		if err := s.fs.Create(ctx, aurl.Join(s.baseURL, parent), 0o755, true); err != nil {
			// The upload below fails if the directory truly cannot exist.
			slog.Debug("Parent directory create failed", "volume", s.name, "path", parent, "error", err)
		}
	}

	if err := s.fs.Upload(ctx, target, 0644, f); err != nil {
		return fmt.Errorf("failed to upload %s: %w", remotePath, err)
	}

	slog.Info("Uploaded object",
		"volume", s.name,
		"src", localPath,
		"dst", remotePath,
		"size", xfs.HumanSize(info.Size()),
	)

	return nil
}

// Get downloads an object from the volume to a local file.
func (s *Store) Get(ctx context.Context, remotePath, localPath string) error {
	target := s.objectURL(remotePath)

	ok, err := s.fs.Exists(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", remotePath, ErrObjectNotFound)
	}

	data, err := s.fs.DownloadWithURL(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}

	localPath = xfs.ExpandTilde(localPath)
	if err := xfs.EnsureDir(filepath.Dir(localPath)); err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return err
	}

	slog.Info("Downloaded object",
		"volume", s.name,
		"src", remotePath,
		"dst", localPath,
		"size", xfs.HumanSize(int64(len(data))),
	)

	return nil
}

// List returns the entries under a path, directories first. A path
// that does not exist yet lists as empty.
func (s *Store) List(ctx context.Context, remotePath string) ([]Entry, error) {
	target := s.objectURL(remotePath)

	ok, err := s.fs.Exists(ctx, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	objects, err := s.fs.List(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", remotePath, err)
	}

	// The listing includes the folder itself, drop it. The scheme may
	// render the authority differently (file:// vs file://localhost),
	// so compare paths rather than raw URLs.
	selfPath := strings.TrimRight(aurl.Path(target), "/")

	entries := make([]Entry, 0, len(objects))
	for _, o := range objects {
		if o == nil || strings.TrimRight(aurl.Path(o.URL()), "/") == selfPath {
			continue
		}
		entries = append(entries, Entry{
			Name:    strings.Trim(o.Name(), "/"),
			Size:    o.Size(),
			ModTime: o.ModTime(),
			Dir:     o.IsDir(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Dir != entries[j].Dir {
			return entries[i].Dir
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// Stat returns the entry for a single path.
func (s *Store) Stat(ctx context.Context, remotePath string) (Entry, error) {
	trimmed := s.trim(remotePath)
	if trimmed == "" {
		return Entry{Name: "/", Dir: true}, nil
	}

	entries, err := s.List(ctx, path.Dir(trimmed))
	if err != nil {
		return Entry{}, err
	}

	name := path.Base(trimmed)
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}

	return Entry{}, fmt.Errorf("%s: %w", remotePath, ErrObjectNotFound)
}

// Exists reports whether a path exists inside the volume.
func (s *Store) Exists(ctx context.Context, remotePath string) (bool, error) {
	return s.fs.Exists(ctx, s.objectURL(remotePath))
}

// Remove deletes an object from the volume.
func (s *Store) Remove(ctx context.Context, remotePath string) error {
	target := s.objectURL(remotePath)

	ok, err := s.fs.Exists(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", remotePath, ErrObjectNotFound)
	}

	if err := s.fs.Delete(ctx, target); err != nil {
		return fmt.Errorf("failed to remove %s: %w", remotePath, err)
	}

	slog.Info("Removed object", "volume", s.name, "path", remotePath)
	return nil
}

// objectURL maps a volume path to its URL.
func (s *Store) objectURL(remotePath string) string {
	trimmed := s.trim(remotePath)
	if trimmed == "" {
		return s.baseURL
	}
	return aurl.Join(s.baseURL, trimmed)
}

func (s *Store) trim(remotePath string) string {
	return strings.Trim(path.Clean("/"+remotePath), "/")
}

// FormatLong renders entries the way ls -l does.
func FormatLong(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		kind, size := "-", xfs.HumanSize(e.Size)
		if e.Dir {
			kind, size = "d", "-"
		}
		fmt.Fprintf(&b, "%s %10s  %s  %s\n", kind, size, e.ModTime.Format("Jan _2 15:04"), e.Name)
	}
	return b.String()
}

func resolveVolumesPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.StyldVolumesPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg != nil && cfg.Storage.VolumesDir != "" {
		return xfs.ExpandTilde(cfg.Storage.VolumesDir)
	}
	return config.DefaultVolumesPath()
}
