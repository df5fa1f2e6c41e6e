package uploads

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/testutil"
)

var fixedNow = time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC)

func newRepo(t *testing.T, opts ...Option) (*Repository, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewRepository(env.Store, env.Index, env.Logger, opts...), env
}

func TestStoreBinary(t *testing.T) {
	repo, env := newRepo(t)
	up, err := repo.Store(context.Background(), strings.NewReader("PNGDATA"), "My Photo.PNG", 7)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-17_101500_My-Photo.PNG", up.Filename)
	assert.Equal(t, "My Photo.PNG", up.OriginalName)
	assert.Equal(t, "uploads/2026-10-17_101500_My-Photo.PNG", up.Path)
	assert.Equal(t, int64(7), up.Size)
	assert.Equal(t, "png", up.Type)

	data, err := os.ReadFile(filepath.Join(env.Root, "uploads", up.Filename))
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))

	doc, err := env.Index.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Notes, "non-markdown uploads are not indexed")
}

func TestStoreMarkdownRegistersNote(t *testing.T) {
	repo, env := newRepo(t)
	up, err := repo.Store(context.Background(), strings.NewReader("# hi"), "meeting notes.md", 4)
	require.NoError(t, err)

	doc, err := env.Index.Load()
	require.NoError(t, err)
	require.Len(t, doc.Notes, 1)
	assert.Equal(t, indexstore.Entry{Name: "meeting-notes", Path: up.Path}, doc.Notes[0])
}

func TestStoreMarkdownSucceedsWhenIndexFails(t *testing.T) {
	env := testutil.NewEnv(t)
	broken := indexstore.New(filepath.Join(env.Root, "missing", "notes-index.json"))
	repo := NewRepository(env.Store, broken, env.Logger)

	up, err := repo.Store(context.Background(), strings.NewReader("x"), "a.md", 1)
	require.NoError(t, err)
	assert.True(t, env.Store.Exists(up.Path))
}

func TestStoreTraversalName(t *testing.T) {
	repo, env := newRepo(t, WithPolicy(NewPolicy(PolicyDenylist, nil)))
	up, err := repo.Store(context.Background(), strings.NewReader("root:x"), "../../etc/passwd", 6)
	require.NoError(t, err)
	assert.Equal(t, "uploads/2026-10-17_101500_passwd", up.Path)

	_, err = os.Stat(filepath.Join(env.Root, "uploads", up.Filename))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(env.Root), "etc", "passwd"))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreTraversalNameRejectedByAllowlist(t *testing.T) {
	repo, env := newRepo(t)
	_, err := repo.Store(context.Background(), strings.NewReader("root:x"), "../../etc/passwd", 6)
	require.ErrorIs(t, err, apperr.ErrUnsupportedType)

	entries, _ := os.ReadDir(filepath.Join(env.Root, "uploads"))
	assert.Empty(t, entries)
}

func TestStoreRejectsInvalidName(t *testing.T) {
	repo, _ := newRepo(t)
	_, err := repo.Store(context.Background(), strings.NewReader("x"), "???", 1)
	require.ErrorIs(t, err, apperr.ErrInvalidName)
}

func TestStoreRejectsDeclaredSize(t *testing.T) {
	repo, _ := newRepo(t, WithMaxBytes(4))
	_, err := repo.Store(context.Background(), strings.NewReader("12345"), "a.txt", 5)
	require.ErrorIs(t, err, apperr.ErrPayloadTooLarge)
}

func TestStoreRejectsUnderstatedSize(t *testing.T) {
	repo, env := newRepo(t, WithMaxBytes(4))
	_, err := repo.Store(context.Background(), strings.NewReader("123456789"), "a.txt", 2)
	require.ErrorIs(t, err, apperr.ErrPayloadTooLarge)

	entries, _ := os.ReadDir(filepath.Join(env.Root, "uploads"))
	assert.Empty(t, entries, "oversized partial upload left behind")
}

func TestStoreExactlyMaxBytes(t *testing.T) {
	repo, _ := newRepo(t, WithMaxBytes(4))
	up, err := repo.Store(context.Background(), strings.NewReader("1234"), "a.txt", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), up.Size)
}

func TestStoreSameSecondCollision(t *testing.T) {
	repo, _ := newRepo(t)
	a, err := repo.Store(context.Background(), strings.NewReader("a"), "x.txt", 1)
	require.NoError(t, err)
	b, err := repo.Store(context.Background(), strings.NewReader("b"), "x.txt", 1)
	require.NoError(t, err)
	assert.NotEqual(t, a.Path, b.Path)
	assert.Equal(t, "2026-10-17_101500_x-2.txt", b.Filename)
}

func TestPolicy(t *testing.T) {
	allow := DefaultPolicy()
	assert.True(t, allow.Permits("md"))
	assert.True(t, allow.Permits("png"))
	assert.False(t, allow.Permits("php"))
	assert.False(t, allow.Permits(""))

	deny := NewPolicy(PolicyDenylist, nil)
	assert.False(t, deny.Permits("php"))
	assert.False(t, deny.Permits("sh"))
	assert.True(t, deny.Permits("png"))
	assert.True(t, deny.Permits(""))

	custom := NewPolicy(PolicyAllowlist, []string{".PDF", " txt "})
	assert.True(t, custom.Permits("pdf"))
	assert.True(t, custom.Permits("txt"))
	assert.False(t, custom.Permits("md"))
}

func TestStoreUnsupportedType(t *testing.T) {
	repo, _ := newRepo(t, WithPolicy(NewPolicy(PolicyDenylist, nil)))
	_, err := repo.Store(context.Background(), strings.NewReader("<?php"), "shell.php", 5)
	require.ErrorIs(t, err, apperr.ErrUnsupportedType)
}

func TestStoreLongDeclaredName(t *testing.T) {
	repo, env := newRepo(t)
	declared := strings.Repeat("p", 300) + ".png"

	up, err := repo.Store(context.Background(), strings.NewReader("PNGDATA"), declared, 7)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(up.Filename), 255)
	assert.True(t, strings.HasSuffix(up.Filename, ".png"), up.Filename)
	assert.Equal(t, "png", up.Type)
	assert.FileExists(t, filepath.Join(env.Root, "uploads", up.Filename))
}
