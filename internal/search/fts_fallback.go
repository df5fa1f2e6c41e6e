//go:build !sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; Search falls back to LIKE on the notes table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _ string, _ []string) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches notes whose name, title, body or tags contain every word of
// query, case-insensitively for ASCII.
func (db *DB) Search(query string, limit int) ([]Result, error) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return []Result{}, nil
	}
	var (
		where []string
		args  []any
	)
	for _, w := range words {
		like := "%" + escapeLike(w) + "%"
		where = append(where, `(name LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like, like)
	}
	args = append(args, clampLimit(limit))
	rows, err := db.conn.Query(`
		SELECT path, name, title, excerpt
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY updated_at DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	return scanResults(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
