// Package testutil provides shared test helpers for setting up data roots and databases.
package testutil

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/storage"
)

// Env is a throwaway data root with its storage provider and index store.
type Env struct {
	Root   string
	Store  *storage.FS
	Index  *indexstore.Store
	Logger *slog.Logger
}

// NewEnv creates a temporary data root.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return &Env{
		Root:   store.Root(),
		Store:  store,
		Index:  indexstore.New(filepath.Join(store.Root(), "notes-index.json")),
		Logger: Logger(),
	}
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestDB creates a temporary search database that is automatically closed.
func TestDB(t *testing.T) *search.DB {
	t.Helper()
	db, err := search.Open(filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
