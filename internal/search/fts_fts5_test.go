//go:build sqlite_fts5

package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFTS5_TableExists(t *testing.T) {
	e := newEnv(t)
	var count int
	require.NoError(t, e.db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count))
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	e := newEnv(t)
	row := Row{Path: "notes/fts.md", Name: "fts", Title: "FTS Note", Checksum: "f1", UpdatedAt: time.Now()}
	require.NoError(t, e.db.Upsert(row, "Ansuz provides powerful full-text search capabilities."))

	results, err := e.db.Search("power", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "notes/fts.md", results[0].Path)
	assert.Contains(t, results[0].Snippet, "powerful")
}

func TestFTS5_DeleteAndReplace(t *testing.T) {
	e := newEnv(t)
	now := time.Now()
	require.NoError(t, e.db.Upsert(Row{Path: "notes/evo.md", Title: "Old", Checksum: "1", UpdatedAt: now}, "original text"))
	require.NoError(t, e.db.Upsert(Row{Path: "notes/evo.md", Title: "New", Checksum: "2", UpdatedAt: now}, "replacement text"))

	results, err := e.db.Search("original", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = e.db.Search("replacement", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "New", results[0].Title)

	require.NoError(t, e.db.Delete("notes/evo.md"))
	results, err = e.db.Search("replacement", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"foo"* "bar"*`, ftsQuery("foo  bar"))
	assert.Equal(t, `"a""b"*`, ftsQuery(`a"b`))
	assert.Equal(t, "", ftsQuery("   "))
}
