package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Stats summarises one Sync pass.
type Stats struct {
	Indexed int `json:"indexed"`
	Removed int `json:"removed"`
}

// Changed reports whether the pass modified the search index.
func (s Stats) Changed() bool {
	return s.Indexed+s.Removed > 0
}

// Sync brings the search index in line with the index document:
//   - markdown entries whose file changed are parsed and upserted
//   - rows no longer backed by an entry and a file are deleted
//
// Per-note failures are logged and skipped.
func Sync(ctx context.Context, db *DB, index *indexstore.Store, store storage.Provider, logger *slog.Logger) (Stats, error) {
	var st Stats
	doc, err := index.Load()
	if err != nil {
		return st, fmt.Errorf("search: load index: %w", err)
	}
	disk := make(map[string]models.FileMetadata)
	for _, dir := range []string{storage.NotesDir, storage.UploadsDir} {
		metas, err := store.List(dir)
		if err != nil {
			return st, err
		}
		for _, m := range metas {
			disk[m.Path] = m
		}
	}
	indexed, err := db.Checksums()
	if err != nil {
		return st, err
	}

	live := make(map[string]struct{}, len(doc.Notes))
	for _, e := range doc.Notes {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if !strings.HasSuffix(e.Path, ".md") {
			continue
		}
		meta, ok := disk[e.Path]
		if !ok {
			continue
		}
		live[e.Path] = struct{}{}
		if indexed[e.Path] == meta.Checksum {
			continue
		}
		if err := indexNote(db, store, e, meta); err != nil {
			logger.Warn("search: index failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		st.Indexed++
		logger.Debug("search: indexed", slog.String("path", e.Path))
	}

	for p := range indexed {
		if _, ok := live[p]; ok {
			continue
		}
		if err := db.Delete(p); err != nil {
			logger.Warn("search: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		st.Removed++
		logger.Debug("search: removed stale", slog.String("path", p))
	}
	return st, nil
}

func indexNote(db *DB, store storage.Provider, e indexstore.Entry, meta models.FileMetadata) error {
	data, err := store.Read(e.Path)
	if err != nil {
		return err
	}
	res := parser.Parse(data)
	return db.Upsert(Row{
		Path:      e.Path,
		Name:      e.Name,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		Excerpt:   res.Excerpt,
		UpdatedAt: meta.UpdatedAt,
	}, res.Body)
}
