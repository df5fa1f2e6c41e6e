package search

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultLimit is used when a search does not ask for a positive limit.
const DefaultLimit = 20

// MaxLimit caps the number of results of one search.
const MaxLimit = 100

// Row is one indexed note.
type Row struct {
	Path      string
	Name      string
	Title     string
	Checksum  string
	Tags      []string
	Excerpt   string
	UpdatedAt time.Time
}

// Result is one search hit.
type Result struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Upsert inserts or replaces a note and its full-text entry.
func (db *DB) Upsert(r Row, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("search: encode tags: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO notes (path, name, title, checksum, tags, excerpt, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			excerpt    = excluded.excerpt,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, r.Path, r.Name, r.Title, r.Checksum, string(tagsJSON), r.Excerpt, body, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("search: upsert note: %w", err)
	}
	if err := ftsUpsert(tx, r.Path, r.Name, r.Title, body, r.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a note and its full-text entry.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("search: delete note: %w", err)
	}
	return tx.Commit()
}

// Get returns the indexed row for path, or nil when it is not indexed.
func (db *DB) Get(path string) (*Row, error) {
	var (
		r    Row
		tags string
	)
	err := db.conn.QueryRow(`
		SELECT path, name, title, checksum, tags, excerpt, updated_at
		FROM notes WHERE path = ?
	`, path).Scan(&r.Path, &r.Name, &r.Title, &r.Checksum, &tags, &r.Excerpt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search: get %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return nil, fmt.Errorf("search: decode tags of %s: %w", path, err)
	}
	return &r, nil
}

// Checksums returns path → checksum for every indexed note.
func (db *DB) Checksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("search: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	defer rows.Close()
	out := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Path, &r.Name, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
