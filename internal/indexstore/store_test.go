package indexstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "notes-index.json"), opts...)
}

func TestLoadMissingIsEmpty(t *testing.T) {
	s := newStore(t)
	doc, err := s.Load()
	require.NoError(t, err)
	assert.NotNil(t, doc.Notes)
	assert.Empty(t, doc.Notes)
}

func TestUpdateCreatesDocumentLazily(t *testing.T) {
	s := newStore(t)
	_, err := os.Stat(s.Path())
	require.ErrorIs(t, err, os.ErrNotExist)

	err = s.Update(context.Background(), func(doc *Document) error {
		doc.Append(Entry{Name: "Todo", Path: "notes/todo.md"})
		return nil
	})
	require.NoError(t, err)

	doc, err := s.Load()
	require.NoError(t, err)
	want := []Entry{{Name: "Todo", Path: "notes/todo.md"}}
	if diff := cmp.Diff(want, doc.Notes); diff != "" {
		t.Errorf("notes mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdatePreservesOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, s.Update(ctx, func(doc *Document) error {
			doc.Append(Entry{Name: name, Path: "notes/" + name + ".md"})
			return nil
		}))
	}
	doc, err := s.Load()
	require.NoError(t, err)
	var got []string
	for _, n := range doc.Notes {
		got = append(got, n.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestMutatorErrorAbortsWrite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(doc *Document) error {
		doc.Append(Entry{Name: "keep", Path: "notes/keep.md"})
		return nil
	}))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(ctx, func(doc *Document) error {
		doc.Append(Entry{Name: "lost", Path: "notes/lost.md"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	// The lock was released: a follow-up update proceeds immediately.
	require.NoError(t, s.Update(ctx, func(*Document) error { return nil }))
}

func TestCorruptDocumentTreatedAsEmpty(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Notes)

	require.NoError(t, s.Update(context.Background(), func(doc *Document) error {
		assert.Empty(t, doc.Notes)
		doc.Append(Entry{Name: "fresh", Path: "notes/fresh.md"})
		return nil
	}))
	doc, err = s.Load()
	require.NoError(t, err)
	require.Len(t, doc.Notes, 1)
	assert.Equal(t, "fresh", doc.Notes[0].Name)
}

func TestDocumentJSONShape(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Update(context.Background(), func(doc *Document) error {
		doc.Append(Entry{Name: "plain", Path: "notes/plain.md"})
		doc.Append(Entry{Name: "shared", Path: "notes/shared.md", ShareToken: "abc", BurnAfterReading: true})
		return nil
	}))
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var generic map[string][]map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	notes := generic["notes"]
	require.Len(t, notes, 2)
	assert.NotContains(t, notes[0], "burnAfterReading")
	assert.NotContains(t, notes[0], "shareToken")
	assert.NotContains(t, notes[0], "passwordHash")
	assert.Equal(t, true, notes[1]["burnAfterReading"])
	assert.Equal(t, "abc", notes[1]["shareToken"])
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	s := newStore(t)
	const writers = 16

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Update(context.Background(), func(doc *Document) error {
				doc.Append(Entry{Name: fmt.Sprint(i), Path: fmt.Sprintf("notes/%d.md", i)})
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Notes, writers)
}

func TestReadersNeverSeePartialDocument(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(*Document) error { return nil }))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 50 {
			_ = s.Update(ctx, func(doc *Document) error {
				doc.Append(Entry{Name: fmt.Sprint(i), Path: fmt.Sprintf("notes/%d.md", i)})
				return nil
			})
		}
	}()

	last := 0
	for {
		select {
		case <-done:
			return
		default:
		}
		raw, err := os.ReadFile(s.Path())
		require.NoError(t, err)
		require.True(t, json.Valid(raw), "reader observed invalid JSON: %q", raw)

		doc := decode(raw)
		require.GreaterOrEqual(t, len(doc.Notes), last)
		last = len(doc.Notes)
	}
}

func TestUpdateLockTimeout(t *testing.T) {
	s := newStore(t, WithLockTimeout(50*time.Millisecond))
	held, err := acquireLock(context.Background(), s.lockPath, time.Second)
	require.NoError(t, err)
	defer held.release()

	err = s.Update(context.Background(), func(*Document) error {
		t.Fatal("mutator must not run without the lock")
		return nil
	})
	require.ErrorIs(t, err, ErrLockTimeout)
	require.ErrorIs(t, err, ErrStore)
}

func TestUpdateHonoursContext(t *testing.T) {
	s := newStore(t, WithLockTimeout(time.Minute))
	held, err := acquireLock(context.Background(), s.lockPath, time.Second)
	require.NoError(t, err)
	defer held.release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = s.Update(ctx, func(*Document) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpdateFailureLeavesNoDocument(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "missing-dir", "notes-index.json"))
	err := s.Update(context.Background(), func(*Document) error { return nil })
	require.ErrorIs(t, err, ErrStore)
	_, statErr := os.Stat(s.Path())
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestDocumentHelpers(t *testing.T) {
	doc := Empty()
	doc.Append(Entry{Name: "a", Path: "notes/a.md"})
	doc.Append(Entry{Name: "b", Path: "notes/b.md", ShareToken: "tok"})
	doc.Append(Entry{Name: "a2", Path: "notes/a.md"})

	require.NotNil(t, doc.Find("notes/b.md"))
	assert.Nil(t, doc.Find("notes/zzz.md"))
	assert.Equal(t, "b", doc.FindByToken("tok").Name)
	assert.Nil(t, doc.FindByToken(""))

	assert.True(t, doc.Remove("notes/a.md"))
	assert.False(t, doc.Remove("notes/a.md"))
	require.Len(t, doc.Notes, 1)
	assert.Equal(t, "b", doc.Notes[0].Name)
}
