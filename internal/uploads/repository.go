// Package uploads stores arbitrary uploaded files and registers markdown
// uploads as notes.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/filename"
	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// DefaultMaxBytes matches the FAT32 file size ceiling.
const DefaultMaxBytes int64 = 4<<30 - 1

const maxNameAttempts = 100

// Repository persists uploads under the uploads directory.
type Repository struct {
	store    storage.Provider
	index    *indexstore.Store
	logger   *slog.Logger
	policy   Policy
	maxBytes int64
	now      func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithPolicy sets the extension policy.
func WithPolicy(p Policy) Option {
	return func(r *Repository) { r.policy = p }
}

// WithMaxBytes caps the accepted upload size.
func WithMaxBytes(n int64) Option {
	return func(r *Repository) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithClock replaces time.Now for generated file names.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates an upload repository with the default policy and size limit.
func NewRepository(store storage.Provider, index *indexstore.Store, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		index:    index,
		logger:   logger,
		policy:   DefaultPolicy(),
		maxBytes: DefaultMaxBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxBytes returns the configured size limit.
func (r *Repository) MaxBytes() int64 {
	return r.maxBytes
}

// Store validates and persists an upload. size is the size declared by the
// transport; the reader is additionally capped so an understated size cannot
// exceed the limit. Markdown uploads are registered in the index on a
// best-effort basis.
func (r *Repository) Store(ctx context.Context, src io.Reader, declaredName string, size int64) (*models.Upload, error) {
	if size > r.maxBytes {
		return nil, fmt.Errorf("uploads: %d bytes exceeds %d: %w", size, r.maxBytes, apperr.ErrPayloadTooLarge)
	}
	safe, err := filename.Sanitize(declaredName)
	if err != nil {
		return nil, err
	}
	ext := filename.Extension(safe)
	if !r.policy.Permits(ext) {
		return nil, fmt.Errorf("uploads: extension %q: %w", ext, apperr.ErrUnsupportedType)
	}

	limited := &limitReader{r: src, remaining: r.maxBytes}
	unique, written, err := r.persist(safe, limited)
	if err != nil {
		if errors.Is(err, apperr.ErrPayloadTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("uploads: save %s: %w", safe, err)
	}
	rel := path.Join(storage.UploadsDir, unique)

	if ext == "md" {
		entry := indexstore.Entry{Name: filename.Base(safe), Path: rel}
		err := r.index.Update(ctx, func(doc *indexstore.Document) error {
			doc.Append(entry)
			return nil
		})
		if err != nil {
			r.logger.Warn("uploads: markdown upload not indexed",
				slog.String("path", rel), slog.String("error", err.Error()))
		}
	}

	return &models.Upload{
		Filename:     unique,
		OriginalName: declaredName,
		Path:         rel,
		Size:         written,
		Type:         ext,
	}, nil
}

func (r *Repository) persist(safe string, src io.Reader) (string, int64, error) {
	base := filename.Timestamped(r.now(), safe)
	for n := 1; n <= maxNameAttempts; n++ {
		unique := filename.WithCounter(base, n)
		written, err := r.store.CreateExclusive(path.Join(storage.UploadsDir, unique), src)
		if err == nil {
			return unique, written, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", 0, err
		}
	}
	return "", 0, fmt.Errorf("no free name for %s", base)
}

// limitReader fails with ErrPayloadTooLarge once more than remaining bytes are read.
type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, apperr.ErrPayloadTooLarge
	}
	return n, err
}
