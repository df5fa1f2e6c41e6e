// Package indexstore persists the notes index document: the single JSON file
// mapping logical notes to content paths and share metadata.
package indexstore

// Entry is one note in the index. Path is the identity key.
type Entry struct {
	Name             string `json:"name"`
	Path             string `json:"path"`
	Slug             string `json:"slug,omitempty"`
	ShareToken       string `json:"shareToken,omitempty"`
	BurnAfterReading bool   `json:"burnAfterReading,omitempty"`
	PasswordHash     string `json:"passwordHash,omitempty"`
}

// Shared reports whether the entry has an active share link.
func (e *Entry) Shared() bool {
	return e.ShareToken != ""
}

// Gated reports whether the entry is protected by a share password or a
// burn-after-reading link. Anonymous readers may only reach it through the
// share token.
func (e *Entry) Gated() bool {
	return e.PasswordHash != "" || e.BurnAfterReading
}

// Document is the whole index. Notes keep insertion order.
type Document struct {
	Notes []Entry `json:"notes"`
}

// Empty returns a document with no notes.
func Empty() *Document {
	return &Document{Notes: []Entry{}}
}

// Find returns a pointer into d.Notes for the entry with the given path.
func (d *Document) Find(path string) *Entry {
	for i := range d.Notes {
		if d.Notes[i].Path == path {
			return &d.Notes[i]
		}
	}
	return nil
}

// FindByToken returns the entry whose share token equals token.
func (d *Document) FindByToken(token string) *Entry {
	if token == "" {
		return nil
	}
	for i := range d.Notes {
		if d.Notes[i].ShareToken == token {
			return &d.Notes[i]
		}
	}
	return nil
}

// Append adds e at the end of the document.
func (d *Document) Append(e Entry) {
	d.Notes = append(d.Notes, e)
}

// Remove drops every entry with the given path and reports whether any was removed.
func (d *Document) Remove(path string) bool {
	kept := d.Notes[:0]
	for _, n := range d.Notes {
		if n.Path != path {
			kept = append(kept, n)
		}
	}
	removed := len(kept) != len(d.Notes)
	d.Notes = kept
	return removed
}
