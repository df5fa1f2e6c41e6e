package search

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/storage"
)

// DefaultDebounce is the quiet period before a watcher-triggered Sync.
const DefaultDebounce = 200 * time.Millisecond

// SyncCallback is called after every watcher-triggered Sync. document is true
// when the index document itself was among the changed files.
type SyncCallback func(st Stats, document bool)

// Watcher re-syncs the search index when the index document or a markdown
// file under the data root changes, including changes made by other
// processes sharing the directory.
type Watcher struct {
	db       *DB
	index    *indexstore.Store
	store    storage.Provider
	root     string
	logger   *slog.Logger
	debounce time.Duration
	cb       SyncCallback
}

// NewWatcher creates a watcher for the data root. cb may be nil.
func NewWatcher(db *DB, index *indexstore.Store, store storage.Provider, root string, logger *slog.Logger, cb SyncCallback) *Watcher {
	return &Watcher{
		db:       db,
		index:    index,
		store:    store,
		root:     root,
		logger:   logger,
		debounce: DefaultDebounce,
		cb:       cb,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	indexDir := filepath.Dir(w.index.Path())
	indexName := filepath.Base(w.index.Path())
	if err := fw.Add(indexDir); err != nil {
		return err
	}
	for _, dir := range []string{storage.NotesDir, storage.UploadsDir} {
		if err := addDirsRecursive(fw, filepath.Join(w.root, dir)); err != nil {
			return err
		}
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	var (
		timer    *time.Timer
		timerC   <-chan time.Time
		document bool
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerC:
			st, err := Sync(ctx, w.db, w.index, w.store, w.logger)
			if err != nil {
				w.logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
			} else if w.cb != nil {
				w.cb(st, document)
			}
			document = false

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && filepath.Dir(ev.Name) != indexDir {
					if err := addDirsRecursive(fw, ev.Name); err != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					schedule()
					continue
				}
			}
			switch {
			case filepath.Dir(ev.Name) == indexDir && filepath.Base(ev.Name) == indexName:
				document = true
				schedule()
			case strings.HasSuffix(ev.Name, ".md"):
				schedule()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
