//go:build sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			path UNINDEXED,
			name,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, name, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO notes_fts (path, name, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		path, name, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("search: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, path)
}

// Search runs an FTS5 query and returns hits with highlighted snippets.
// Each whitespace separated word is matched as a quoted prefix term.
func (db *DB) Search(query string, limit int) ([]Result, error) {
	match := ftsQuery(query)
	if match == "" {
		return []Result{}, nil
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       name,
		       title,
		       snippet(notes_fts, 3, '<b>', '</b>', '...', 32)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	return scanResults(rows)
}

func ftsQuery(query string) string {
	var terms []string
	for _, w := range strings.Fields(query) {
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}
