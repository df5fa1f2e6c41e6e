package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/search"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Name    string  `json:"name" example:"Todo"`
	Content *string `json:"content" example:"- a\n- b"`
	Slug    string  `json:"slug,omitempty" example:"todo"`
}

// Validate implements validation.Validatable.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Content, validation.NotNil),
		validation.Field(&r.Slug, validation.Length(0, 255)),
	)
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Path    string  `json:"path" example:"notes/2026-10-17_101500_Todo.md"`
	Content *string `json:"content" example:"- a\n- b\n- c"`
}

// Validate implements validation.Validatable.
func (r UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Content, validation.NotNil),
	)
}

// DeleteNoteRequest is the request body for deleting a note.
type DeleteNoteRequest struct {
	Path string `json:"path" example:"notes/2026-10-17_101500_Todo.md"`
}

// Validate implements validation.Validatable.
func (r DeleteNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// LoginRequest is the request body for POST /auth.
type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"changeme123"`
}

// Validate implements validation.Validatable.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ShareRequest is the request body for POST /share.
type ShareRequest struct {
	Path             string `json:"path" example:"notes/2026-10-17_101500_Todo.md"`
	BurnAfterReading bool   `json:"burnAfterReading"`
	Password         string `json:"password,omitempty"`
}

// Validate implements validation.Validatable.
func (r ShareRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Password, validation.Length(0, 72)),
	)
}

// NoteListResponse wraps the index document.
type NoteListResponse struct {
	Notes []noteView `json:"notes" validate:"required"`
}

// NoteContentResponse is returned by GET /notes/content.
type NoteContentResponse struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// CreateNoteResponse is returned after a successful create.
type CreateNoteResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Slug    string `json:"slug,omitempty"`
}

// PathResponse is returned by update and delete.
type PathResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

// AuthStatusResponse is returned by GET /auth.
type AuthStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// LogoutResponse is returned by DELETE /auth.
type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ShareResponse is returned after creating or rotating a share.
type ShareResponse struct {
	Success           bool   `json:"success"`
	ShareToken        string `json:"shareToken"`
	ShareURL          string `json:"shareUrl"`
	BurnAfterReading  bool   `json:"burnAfterReading"`
	PasswordProtected bool   `json:"passwordProtected"`
}

// SharedNoteResponse is returned when a share token is resolved.
type SharedNoteResponse struct {
	Success          bool   `json:"success"`
	Name             string `json:"name"`
	Content          string `json:"content"`
	BurnAfterReading bool   `json:"burnAfterReading"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Result `json:"results" validate:"required"`
}
