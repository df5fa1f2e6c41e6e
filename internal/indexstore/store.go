package indexstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
)

// DefaultLockTimeout bounds how long Update waits for the index lock.
const DefaultLockTimeout = 5 * time.Second

// ErrStore wraps failures to persist the index document.
var ErrStore = errors.New("index store")

// Mutator transforms the document in place. Returning an error aborts the
// update without writing anything.
type Mutator func(doc *Document) error

// Store reads and updates one index document on disk.
type Store struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// New returns a Store for the document at path. The parent directory must exist.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the index document.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document without taking the lock. A missing or unparseable
// file yields an empty document. Atomic replacement guarantees the bytes read
// belong to exactly one version.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrStore, filepath.Base(s.path), err)
	}
	return decode(data), nil
}

// Update runs fn against the current document under the exclusive index lock
// and atomically replaces the file with the result. The lock is released on
// every path out of Update.
func (s *Store) Update(ctx context.Context, fn Mutator) error {
	lock, err := acquireLock(ctx, s.lockPath, s.lockTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	defer lock.release()

	doc := Empty()
	if data, err := os.ReadFile(s.path); err == nil {
		doc = decode(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: read: %w", ErrStore, err)
	}

	if err := fn(doc); err != nil {
		return err
	}
	if doc.Notes == nil {
		doc.Notes = []Entry{}
	}

	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStore, err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(out)); err != nil {
		return fmt.Errorf("%w: write: %w", ErrStore, err)
	}
	return nil
}

// decode treats corrupt content as "no prior state".
func decode(data []byte) *Document {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Empty()
	}
	if doc.Notes == nil {
		doc.Notes = []Entry{}
	}
	return &doc
}
