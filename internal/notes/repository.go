// Package notes implements note CRUD on top of the storage provider and the
// index document.
package notes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/filename"
	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/storage"
)

// maxNameAttempts bounds the same-second collision suffixes tried by Create.
const maxNameAttempts = 100

// CreateInput is the payload for Create.
type CreateInput struct {
	Name    string
	Content string
	Slug    string
}

// Repository coordinates note files and their index entries.
type Repository struct {
	store  storage.Provider
	index  *indexstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock replaces time.Now for generated file names.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a note repository.
func NewRepository(store storage.Provider, index *indexstore.Store, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{store: store, index: index, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the index entries in insertion order.
func (r *Repository) List(_ context.Context) ([]indexstore.Entry, error) {
	doc, err := r.index.Load()
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	return doc.Notes, nil
}

// Read returns the content of the note or upload at p.
func (r *Repository) Read(_ context.Context, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("notes: path is required: %w", apperr.ErrInvalidInput)
	}
	if _, err := r.store.Contain(p); err != nil {
		return "", err
	}
	data, err := r.store.Read(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadPublic is Read for callers without a session. Content behind a share
// password or a burn-after-reading link is reported as missing, whatever
// spelling of the path is used to reach it.
func (r *Repository) ReadPublic(ctx context.Context, p string) (string, error) {
	gated, err := r.gated(p)
	if err != nil {
		return "", err
	}
	if gated {
		return "", fmt.Errorf("notes: %s: %w", p, apperr.ErrNotFound)
	}
	return r.Read(ctx, p)
}

// GatedPaths returns the index paths of every gated entry.
func (r *Repository) GatedPaths(_ context.Context) (map[string]bool, error) {
	doc, err := r.index.Load()
	if err != nil {
		return nil, fmt.Errorf("notes: gated paths: %w", err)
	}
	out := make(map[string]bool)
	for i := range doc.Notes {
		if doc.Notes[i].Gated() {
			out[doc.Notes[i].Path] = true
		}
	}
	return out, nil
}

// gated compares files rather than path strings so that links and
// alternative spellings of a gated path are caught too.
func (r *Repository) gated(p string) (bool, error) {
	if p == "" {
		return false, nil
	}
	abs, err := r.store.Contain(p)
	if err != nil {
		return false, err
	}
	target, err := os.Stat(abs)
	if err != nil {
		// Read reports the missing file.
		return false, nil
	}
	doc, err := r.index.Load()
	if err != nil {
		return false, fmt.Errorf("notes: gated: %w", err)
	}
	for i := range doc.Notes {
		e := &doc.Notes[i]
		if !e.Gated() {
			continue
		}
		entryAbs, err := r.store.Contain(e.Path)
		if err != nil {
			continue
		}
		if info, err := os.Stat(entryAbs); err == nil && os.SameFile(info, target) {
			return true, nil
		}
	}
	return false, nil
}

// Create writes a new note file and appends its index entry. If the index
// update fails the file is removed again.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*indexstore.Entry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("notes: name is required: %w", apperr.ErrInvalidInput)
	}
	safe, err := filename.Sanitize(name)
	if err != nil {
		return nil, err
	}
	safe = filename.EnsureSuffix(safe, "md")
	content := []byte(in.Content)

	var rel, slug string
	if raw := strings.TrimSpace(in.Slug); raw != "" {
		slug, err = sanitizeSlug(raw)
		if err != nil {
			return nil, err
		}
		rel = path.Join(storage.NotesDir, slug+".md")
		if _, err := r.store.CreateExclusive(rel, bytes.NewReader(content)); err != nil {
			if errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("notes: slug %q already taken: %w", slug, apperr.ErrConflict)
			}
			return nil, err
		}
	} else {
		rel, err = r.createTimestamped(safe, content)
		if err != nil {
			return nil, err
		}
	}

	entry := indexstore.Entry{Name: name, Path: rel, Slug: slug}
	err = r.index.Update(ctx, func(doc *indexstore.Document) error {
		doc.Append(entry)
		return nil
	})
	if err != nil {
		if rmErr := r.store.Delete(rel); rmErr != nil {
			r.logger.Error("notes: cleanup after failed index update",
				slog.String("path", rel), slog.String("error", rmErr.Error()))
		}
		return nil, fmt.Errorf("notes: register %s: %w", rel, err)
	}
	return &entry, nil
}

// Update overwrites the content of an existing note or upload. The index is
// left untouched.
func (r *Repository) Update(_ context.Context, p, content string) error {
	if p == "" {
		return fmt.Errorf("notes: path is required: %w", apperr.ErrInvalidInput)
	}
	if _, err := r.store.Contain(p); err != nil {
		return err
	}
	if !r.store.Exists(p) {
		return fmt.Errorf("notes: %s: %w", p, apperr.ErrNotFound)
	}
	return r.store.Write(p, []byte(content))
}

// Delete removes the file and then its index entry. A failed index update is
// logged but does not fail the deletion.
func (r *Repository) Delete(ctx context.Context, p string) error {
	if p == "" {
		return fmt.Errorf("notes: path is required: %w", apperr.ErrInvalidInput)
	}
	if _, err := r.store.Contain(p); err != nil {
		return err
	}
	if !r.store.Exists(p) {
		return fmt.Errorf("notes: %s: %w", p, apperr.ErrNotFound)
	}
	if err := r.store.Delete(p); err != nil {
		return err
	}
	err := r.index.Update(ctx, func(doc *indexstore.Document) error {
		doc.Remove(p)
		return nil
	})
	if err != nil {
		r.logger.Warn("notes: stale index entry after delete",
			slog.String("path", p), slog.String("error", err.Error()))
	}
	return nil
}

func (r *Repository) createTimestamped(safe string, content []byte) (string, error) {
	base := filename.Timestamped(r.now(), safe)
	for n := 1; n <= maxNameAttempts; n++ {
		rel := path.Join(storage.NotesDir, filename.WithCounter(base, n))
		_, err := r.store.CreateExclusive(rel, bytes.NewReader(content))
		if err == nil {
			return rel, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("notes: no free name for %s", base)
}

func sanitizeSlug(raw string) (string, error) {
	slug, err := filename.Sanitize(raw)
	if err != nil {
		return "", err
	}
	slug = strings.TrimSuffix(slug, ".md")
	if slug == "" || strings.Trim(slug, ".") == "" {
		return "", fmt.Errorf("notes: slug %q: %w", raw, apperr.ErrInvalidName)
	}
	return slug, nil
}
