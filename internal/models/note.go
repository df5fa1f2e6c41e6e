// Package models defines the domain types shared across packages.
package models

import "time"

// FileMetadata is a lightweight representation of a stored markdown file.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Upload describes a file accepted by the upload repository.
type Upload struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
}

// SharedNote is what a share token resolves to.
type SharedNote struct {
	Path             string `json:"-"`
	Name             string `json:"name"`
	Content          string `json:"content"`
	BurnAfterReading bool   `json:"burnAfterReading"`
}

// ShareLink is the result of creating or rotating a share.
type ShareLink struct {
	Path             string `json:"path"`
	Token            string `json:"shareToken"`
	BurnAfterReading bool   `json:"burnAfterReading"`
	Protected        bool   `json:"passwordProtected"`
}
