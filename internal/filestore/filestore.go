// Package filestore holds uploaded document files. Writes are append-only
// under a freshly generated name, so concurrent uploads never collide and a
// stored file is never overwritten. Deleting a document does not remove its
// backing file; the digest in the document row keeps the audit reference.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store is the file persistence contract consumed by the document gateway.
type Store interface {
	// Store writes the bytes under a new unique handle and returns it.
	Store(data []byte) (string, error)
	// Exists reports whether the handle still resolves to a stored file.
	Exists(handle string) bool
	// Read returns the stored bytes for the handle.
	Read(handle string) ([]byte, error)
}

// Local stores files in a directory on the local filesystem. The handle is
// the file path.
type Local struct {
	dir string
}

// NewLocal creates the upload directory if needed and returns the store.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Store writes the bytes under a fresh UUID name. O_EXCL guards the
// never-overwrite invariant even if the generator ever repeated itself.
func (l *Local) Store(data []byte) (string, error) {
	name := uuid.NewString() + ".pdf"
	path := filepath.Join(l.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("store file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("store file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("store file: %w", err)
	}
	return path, nil
}

// Exists reports whether the backing file is still present.
func (l *Local) Exists(handle string) bool {
	info, err := os.Stat(handle)
	return err == nil && !info.IsDir()
}

// Read returns the stored bytes.
func (l *Local) Read(handle string) ([]byte, error) {
	return os.ReadFile(handle)
}
