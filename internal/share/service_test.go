package share

import (
	"context"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/testutil"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{32}$`)

func setup(t *testing.T, notes ...string) (*Service, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	for _, p := range notes {
		require.NoError(t, env.Store.Write(p, []byte("content of "+p)))
		require.NoError(t, env.Index.Update(ctx, func(doc *indexstore.Document) error {
			doc.Append(indexstore.Entry{Name: filepath.Base(p), Path: p})
			return nil
		}))
	}
	return NewService(env.Store, env.Index, env.Logger, WithBcryptCost(bcrypt.MinCost)), env
}

func TestCreateAndResolve(t *testing.T) {
	svc, env := setup(t, "notes/a.md")
	ctx := context.Background()

	link, err := svc.Create(ctx, CreateInput{Path: "notes/a.md"})
	require.NoError(t, err)
	assert.Regexp(t, hexToken, link.Token)
	assert.False(t, link.BurnAfterReading)
	assert.False(t, link.Protected)

	for range 2 {
		got, err := svc.Resolve(ctx, link.Token, "")
		require.NoError(t, err)
		assert.Equal(t, "a.md", got.Name)
		assert.Equal(t, "content of notes/a.md", got.Content)
		assert.False(t, got.BurnAfterReading)
	}

	doc, err := env.Index.Load()
	require.NoError(t, err)
	assert.Equal(t, link.Token, doc.Find("notes/a.md").ShareToken)
}

func TestBurnAfterReading(t *testing.T) {
	svc, env := setup(t, "notes/a.md", "notes/b.md")
	ctx := context.Background()

	link, err := svc.Create(ctx, CreateInput{Path: "notes/a.md", BurnAfterReading: true})
	require.NoError(t, err)
	assert.True(t, link.BurnAfterReading)

	got, err := svc.Resolve(ctx, link.Token, "")
	require.NoError(t, err)
	assert.Equal(t, "content of notes/a.md", got.Content)
	assert.True(t, got.BurnAfterReading)

	_, err = svc.Resolve(ctx, link.Token, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	assert.False(t, env.Store.Exists("notes/a.md"))
	doc, err := env.Index.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.Find("notes/a.md"))
	assert.NotNil(t, doc.Find("notes/b.md"))
}

func TestBurnAfterReadingConcurrentReaders(t *testing.T) {
	svc, _ := setup(t, "notes/a.md")
	ctx := context.Background()
	link, err := svc.Create(ctx, CreateInput{Path: "notes/a.md", BurnAfterReading: true})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Resolve(ctx, link.Token, ""); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestBurnFlagRemovedOnReshare(t *testing.T) {
	svc, env := setup(t, "notes/a.md")
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Path: "notes/a.md", BurnAfterReading: true})
	require.NoError(t, err)
	link, err := svc.Create(ctx, CreateInput{Path: "notes/a.md"})
	require.NoError(t, err)

	doc, err := env.Index.Load()
	require.NoError(t, err)
	e := doc.Find("notes/a.md")
	assert.False(t, e.BurnAfterReading)
	assert.Equal(t, link.Token, e.ShareToken)
}

func TestReshareRotatesToken(t *testing.T) {
	svc, _ := setup(t, "notes/a.md")
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{Path: "notes/a.md"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{Path: "notes/a.md"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, err = svc.Resolve(ctx, first.Token, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Resolve(ctx, second.Token, "")
	require.NoError(t, err)
}

func TestTokensDifferAcrossNotes(t *testing.T) {
	svc, _ := setup(t, "notes/a.md", "notes/b.md")
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateInput{Path: "notes/a.md"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateInput{Path: "notes/b.md"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestPasswordProtected(t *testing.T) {
	svc, env := setup(t, "notes/a.md")
	ctx := context.Background()

	link, err := svc.Create(ctx, CreateInput{Path: "notes/a.md", Password: "hunter2"})
	require.NoError(t, err)
	assert.True(t, link.Protected)

	doc, err := env.Index.Load()
	require.NoError(t, err)
	hash := doc.Find("notes/a.md").PasswordHash
	assert.NotEmpty(t, hash)
	assert.NotContains(t, hash, "hunter2")

	_, err = svc.Resolve(ctx, link.Token, "")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Resolve(ctx, link.Token, "wrong")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	got, err := svc.Resolve(ctx, link.Token, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "content of notes/a.md", got.Content)

	// Re-sharing without a password lifts the protection.
	link, err = svc.Create(ctx, CreateInput{Path: "notes/a.md"})
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, link.Token, "")
	require.NoError(t, err)
}

func TestWrongPasswordDoesNotBurn(t *testing.T) {
	svc, env := setup(t, "notes/a.md")
	ctx := context.Background()
	link, err := svc.Create(ctx, CreateInput{Path: "notes/a.md", BurnAfterReading: true, Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, link.Token, "nope")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.True(t, env.Store.Exists("notes/a.md"))

	_, err = svc.Resolve(ctx, link.Token, "pw")
	require.NoError(t, err)
}

func TestCreateErrors(t *testing.T) {
	svc, env := setup(t, "notes/a.md")
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.Create(ctx, CreateInput{Path: "notes/ghost.md"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	doc, err := env.Index.Load()
	require.NoError(t, err)
	require.Len(t, doc.Notes, 1)
	assert.False(t, doc.Notes[0].Shared())
}

func TestResolveErrors(t *testing.T) {
	svc, env := setup(t, "notes/a.md")
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "", "")
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.Resolve(ctx, "deadbeef", "")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	link, err := svc.Create(ctx, CreateInput{Path: "notes/a.md"})
	require.NoError(t, err)
	require.NoError(t, env.Store.Delete("notes/a.md"))
	_, err = svc.Resolve(ctx, link.Token, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "https://notes.example.org/share.html?token=abc",
		URL("https://notes.example.org/", "abc"))
	assert.Equal(t, "http://localhost:8080/share.html?token=abc",
		URL("http://localhost:8080", "abc"))
}

func TestNewToken(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		tok, err := NewToken()
		require.NoError(t, err)
		assert.Regexp(t, hexToken, tok)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
