package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem is a [Storage] backed by a local directory. Object paths map
// directly to files under the root; URLs are formed by joining the configured
// prefix with the object path.
//
// Safe for concurrent use — operations on distinct paths are independent and
// Put writes via rename for atomicity.
type Filesystem struct {
	root      string
	urlPrefix string
}

// NewFilesystem creates a Filesystem store rooted at dir. urlPrefix is
// prepended to object paths to form returned URLs (e.g. "/api/audio/files").
// The root directory is created if missing.
func NewFilesystem(dir, urlPrefix string) (*Filesystem, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root %q: %w", dir, err)
	}
	return &Filesystem{
		root:      dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// resolve maps an object path to a filesystem path, rejecting anything that
// would escape the root.
func (f *Filesystem) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || clean == string(filepath.Separator) ||
		strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blob: invalid object path %q", path)
	}
	return filepath.Join(f.root, clean), nil
}

// Put implements [Storage]. The mimeType is ignored — the filesystem carries
// no content-type metadata.
func (f *Filesystem) Put(ctx context.Context, path string, data []byte, mimeType string) (string, error) {
	full, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blob: create directory for %q: %w", path, err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: write %q: %w", path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("blob: store %q: %w", path, err)
	}
	return f.urlPrefix + "/" + path, nil
}

// Get implements [Storage].
func (f *Filesystem) Get(ctx context.Context, path string) ([]byte, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob: %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: read %q: %w", path, err)
	}
	return data, nil
}

// Delete implements [Storage].
func (f *Filesystem) Delete(ctx context.Context, path string) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: delete %q: %w", path, err)
	}
	return nil
}

// Exists implements [Storage].
func (f *Filesystem) Exists(ctx context.Context, path string) (bool, error) {
	full, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blob: stat %q: %w", path, err)
	}
	return true, nil
}
