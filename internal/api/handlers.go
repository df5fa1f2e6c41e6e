package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/auth"
	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/notes"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/share"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/uploads"
)

// multipartOverhead is the slack allowed on top of the upload limit for
// multipart boundaries and part headers.
const multipartOverhead = 1 << 20

// Deps are the collaborators of the API handlers. Search and Events may be nil.
type Deps struct {
	Notes        *notes.Repository
	Uploads      *uploads.Repository
	Share        *share.Service
	Gate         *auth.Gate
	Search       *search.DB
	Events       *sse.Broker
	Logger       *slog.Logger
	PublicURL    string
	ProtectReads bool
}

// Handler holds API route handlers.
type Handler struct {
	notes        *notes.Repository
	uploads      *uploads.Repository
	share        *share.Service
	gate         *auth.Gate
	search       *search.DB
	events       *sse.Broker
	logger       *slog.Logger
	publicURL    string
	protectReads bool
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		notes:        d.Notes,
		uploads:      d.Uploads,
		share:        d.Share,
		gate:         d.Gate,
		search:       d.Search,
		events:       d.Events,
		logger:       logger,
		publicURL:    strings.TrimRight(d.PublicURL, "/"),
		protectReads: d.ProtectReads,
	}
}

func (h *Handler) publish(eventType, path string) {
	if h.events != nil {
		h.events.PublishPath(eventType, path)
	}
}

// noteView is an index entry as shown to API clients. Password hashes never
// leave the server and share tokens are only shown to logged-in users.
type noteView struct {
	Name              string `json:"name"`
	Path              string `json:"path"`
	Slug              string `json:"slug,omitempty"`
	ShareToken        string `json:"shareToken,omitempty"`
	BurnAfterReading  bool   `json:"burnAfterReading,omitempty"`
	PasswordProtected bool   `json:"passwordProtected,omitempty"`
}

func viewOf(e indexstore.Entry, authenticated bool) noteView {
	v := noteView{Name: e.Name, Path: e.Path, Slug: e.Slug}
	if authenticated {
		v.ShareToken = e.ShareToken
		v.BurnAfterReading = e.BurnAfterReading
		v.PasswordProtected = e.PasswordHash != ""
	}
	return v
}

// authenticated reports whether the request carries a live session, either
// already checked by RequireSession or checked here on a public route.
func (h *Handler) authenticated(r *http.Request) bool {
	if _, ok := auth.FromContext(r.Context()); ok {
		return true
	}
	_, err := h.gate.Authenticate(sessionToken(r))
	return err == nil
}

// ListNotes handles GET /api/notes. Anonymous callers do not see notes
// behind a share password or a burn-after-reading link.
//
//	@Summary		List the notes index
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Failure		401		{object}	errResponse
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.notes.List(r.Context())
	if err != nil {
		h.writeError(w, r, "list notes", err)
		return
	}
	authenticated := h.authenticated(r)
	out := make([]noteView, 0, len(entries))
	for _, e := range entries {
		if !authenticated && e.Gated() {
			continue
		}
		out = append(out, viewOf(e, authenticated))
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: out})
}

// GetNoteContent handles GET /api/notes/content?path=.
//
//	@Summary		Fetch the content of a note or markdown upload
//	@Tags			notes
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	NoteContentResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes/content [get]
func (h *Handler) GetNoteContent(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	read := h.notes.ReadPublic
	if h.authenticated(r) {
		read = h.notes.Read
	}
	content, err := read(r.Context(), p)
	if err != nil {
		h.writeError(w, r, "read note", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteContentResponse{Path: p, Content: content})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	CreateNoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "create note", err)
		return
	}
	entry, err := h.notes.Create(r.Context(), notes.CreateInput{
		Name:    req.Name,
		Content: *req.Content,
		Slug:    req.Slug,
	})
	if err != nil {
		h.writeError(w, r, "create note", err)
		return
	}
	h.publish(sse.NoteCreated, entry.Path)
	writeJSON(w, http.StatusCreated, CreateNoteResponse{
		Success: true,
		Name:    entry.Name,
		Path:    entry.Path,
		Slug:    entry.Slug,
	})
}

// UpdateNote handles PUT /api/notes.
//
//	@Summary		Overwrite the content of a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateNoteRequest	true	"Path and new content"
//	@Success		200		{object}	PathResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "update note", err)
		return
	}
	if err := h.notes.Update(r.Context(), req.Path, *req.Content); err != nil {
		h.writeError(w, r, "update note", err)
		return
	}
	h.publish(sse.NoteUpdated, req.Path)
	writeJSON(w, http.StatusOK, PathResponse{Success: true, Path: req.Path})
}

// DeleteNote handles DELETE /api/notes.
//
//	@Summary		Delete a note and its index entry
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DeleteNoteRequest	true	"Path to delete"
//	@Success		200		{object}	PathResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	var req DeleteNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "delete note", err)
		return
	}
	if err := h.notes.Delete(r.Context(), req.Path); err != nil {
		h.writeError(w, r, "delete note", err)
		return
	}
	h.publish(sse.NoteDeleted, req.Path)
	writeJSON(w, http.StatusOK, PathResponse{Success: true, Path: req.Path})
}

// Upload handles POST /api/upload. The multipart body is streamed straight
// to the uploads directory.
//
//	@Summary		Upload a file
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		h.writeError(w, r, "upload", fmt.Errorf("multipart/form-data body required: %w", apperr.ErrInvalidInput))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			h.writeError(w, r, "upload", fmt.Errorf("file field is required: %w", apperr.ErrInvalidInput))
			return
		}
		if err != nil {
			h.writeError(w, r, "upload", uploadError(err))
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}
		up, err := h.uploads.Store(r.Context(), part, part.FileName(), -1)
		part.Close()
		if err != nil {
			h.writeError(w, r, "upload", uploadError(err))
			return
		}
		h.publish(sse.UploadCreated, up.Path)
		writeJSON(w, http.StatusCreated, UploadResponse{
			Success:      true,
			Filename:     up.Filename,
			OriginalName: up.OriginalName,
			Path:         up.Path,
			Size:         up.Size,
			Type:         up.Type,
		})
		return
	}
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("upload exceeds the size limit: %w", apperr.ErrPayloadTooLarge)
	}
	if apperr.Public(err) {
		return err
	}
	if strings.HasPrefix(err.Error(), "multipart:") {
		return fmt.Errorf("malformed multipart body: %w", apperr.ErrInvalidInput)
	}
	return err
}

// Login handles POST /api/auth.
//
//	@Summary		Log in and receive a session cookie
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	LoginResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Router			/auth [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "login", err)
		return
	}
	token, s, err := h.gate.Login(clientIP(r), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			h.logger.Warn("login failed", slog.String("username", req.Username), slog.String("ip", clientIP(r)))
			writeJSON(w, http.StatusUnauthorized, errorBody("invalid username or password"))
			return
		}
		h.writeError(w, r, "login", err)
		return
	}
	h.setSessionCookie(w, r, token, s.ExpiresAt)
	h.logger.Info("login", slog.String("username", s.Username), slog.String("ip", clientIP(r)))
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Username: s.Username})
}

// AuthStatus handles GET /api/auth.
//
//	@Summary		Report whether the caller is logged in
//	@Tags			auth
//	@Produce		json
//	@Success		200		{object}	AuthStatusResponse
//	@Router			/auth [get]
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	s, err := h.gate.Authenticate(sessionToken(r))
	if err != nil {
		writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: true, Username: s.Username})
}

// Logout handles DELETE /api/auth. It always succeeds.
//
//	@Summary		End the current session
//	@Tags			auth
//	@Produce		json
//	@Success		200		{object}	LogoutResponse
//	@Router			/auth [delete]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.gate.Logout(sessionToken(r))
	h.setSessionCookie(w, r, "", time.Unix(0, 0))
	writeJSON(w, http.StatusOK, LogoutResponse{Success: true, Message: "Logged out successfully"})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, value string, expires time.Time) {
	c := &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

// CreateShare handles POST /api/share.
//
//	@Summary		Share a note, rotating any previous link
//	@Tags			share
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ShareRequest	true	"Note to share"
//	@Success		200		{object}	ShareResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/share [post]
func (h *Handler) CreateShare(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "share", err)
		return
	}
	link, err := h.share.Create(r.Context(), share.CreateInput{
		Path:             req.Path,
		BurnAfterReading: req.BurnAfterReading,
		Password:         req.Password,
	})
	if err != nil {
		h.writeError(w, r, "share", err)
		return
	}
	h.publish(sse.NoteShared, link.Path)
	writeJSON(w, http.StatusOK, ShareResponse{
		Success:           true,
		ShareToken:        link.Token,
		ShareURL:          share.URL(h.baseURL(r), link.Token),
		BurnAfterReading:  link.BurnAfterReading,
		PasswordProtected: link.Protected,
	})
}

// ResolveShare handles GET /api/share?token=&password=. It is public.
//
//	@Summary		Read a shared note
//	@Tags			share
//	@Produce		json
//	@Param			token		query		string	true	"Share token"
//	@Param			password	query		string	false	"Share password"
//	@Success		200			{object}	SharedNoteResponse
//	@Failure		400			{object}	errResponse
//	@Failure		401			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Router			/share [get]
func (h *Handler) ResolveShare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	password := r.Header.Get("X-Share-Password")
	if password == "" {
		password = q.Get("password")
	}
	note, err := h.share.Resolve(r.Context(), q.Get("token"), password)
	if err != nil {
		h.writeError(w, r, "resolve share", err)
		return
	}
	if note.BurnAfterReading {
		h.publish(sse.NoteBurned, note.Path)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, SharedNoteResponse{
		Success:          true,
		Name:             note.Name,
		Content:          note.Content,
		BurnAfterReading: note.BurnAfterReading,
	})
}

// Search handles GET /api/search?q=&limit=.
//
//	@Summary		Full-text search over note contents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		h.writeError(w, r, "search", fmt.Errorf("search is disabled: %w", apperr.ErrNotFound))
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(w, r, "search", fmt.Errorf("query parameter q is required: %w", apperr.ErrInvalidInput))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.search.Search(q, limit)
	if err != nil {
		h.writeError(w, r, "search", err)
		return
	}
	if !h.authenticated(r) {
		gated, err := h.notes.GatedPaths(r.Context())
		if err != nil {
			h.writeError(w, r, "search", err)
			return
		}
		visible := results[:0]
		for _, res := range results {
			if !gated[res.Path] {
				visible = append(visible, res)
			}
		}
		results = visible
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
