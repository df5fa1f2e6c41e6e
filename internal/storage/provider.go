// Package storage manages the notes and uploads directories under the data root.
package storage

import (
	"io"

	"github.com/starford/ansuz/internal/models"
)

// Managed directory names, relative to the data root.
const (
	NotesDir   = "notes"
	UploadsDir = "uploads"
)

// Provider is the interface for data-root file operations. Paths are relative
// to the data root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the content of path.
	Write(path string, content []byte) error
	// CreateExclusive creates path and fails with os.ErrExist if it is already taken.
	CreateExclusive(path string, r io.Reader) (int64, error)
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether a regular file is present at path.
	Exists(path string) bool
	// Contain resolves path and rejects it unless its parent directory lies
	// within the notes or uploads directory.
	Contain(path string) (string, error)
}
