package search

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []Stats
	docs  int
}

func (r *recorder) record(st Stats, document bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, st)
	if document {
		r.docs++
	}
}

func (r *recorder) sawDocument() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs > 0
}

func startWatcher(t *testing.T, e *env, cb SyncCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(e.db, e.index, e.store, e.root, e.log, cb)
	w.debounce = 20 * time.Millisecond
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give fsnotify time to register the watches.
	time.Sleep(100 * time.Millisecond)
}

func TestWatcherIndexesNewNote(t *testing.T) {
	e := newEnv(t)
	rec := &recorder{}
	startWatcher(t, e, rec.record)

	e.addNote(t, "Fresh", "notes/fresh.md", "watched content")

	require.Eventually(t, func() bool {
		row, _ := e.db.Get("notes/fresh.md")
		return row != nil
	}, 5*time.Second, 20*time.Millisecond, "new note not indexed by watcher")
	assert.Eventually(t, rec.sawDocument, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherPicksUpExternalEdits(t *testing.T) {
	e := newEnv(t)
	e.addNote(t, "A", "notes/a.md", "before")
	e.sync(t)
	startWatcher(t, e, nil)

	// Another process rewrites the file directly.
	require.NoError(t, os.WriteFile(filepath.Join(e.root, "notes", "a.md"), []byte("after edit"), 0o644))

	require.Eventually(t, func() bool {
		res, _ := e.db.Search("after", 10)
		return len(res) == 1
	}, 5*time.Second, 20*time.Millisecond, "external edit not re-indexed")
}

func TestWatcherRemovesDeletedNote(t *testing.T) {
	e := newEnv(t)
	e.addNote(t, "A", "notes/a.md", "doomed")
	e.sync(t)
	startWatcher(t, e, nil)

	require.NoError(t, os.Remove(filepath.Join(e.root, "notes", "a.md")))

	require.Eventually(t, func() bool {
		row, _ := e.db.Get("notes/a.md")
		return row == nil
	}, 5*time.Second, 20*time.Millisecond, "deleted note still indexed")
}
