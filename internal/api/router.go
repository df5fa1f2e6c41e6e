// Package api implements the ansuz REST API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted. Mutating routes
// always require a session; read routes only when protectReads is set. Share
// resolution and the auth endpoints are public.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Public.
	r.Post("/auth", h.Login)
	r.Get("/auth", h.AuthStatus)
	r.Delete("/auth", h.Logout)
	r.Get("/share", h.ResolveShare)

	// Reads.
	r.Group(func(r chi.Router) {
		if h.protectReads {
			r.Use(h.RequireSession)
		}
		r.Get("/notes", h.ListNotes)
		r.Get("/notes/content", h.GetNoteContent)
		r.Get("/search", h.Search)
		if h.events != nil {
			r.Get("/events", h.events.ServeHTTP)
		}
	})

	// Writes.
	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Post("/notes", h.CreateNote)
		r.Put("/notes", h.UpdateNote)
		r.Delete("/notes", h.DeleteNote)
		r.Post("/upload", h.Upload)
		r.Post("/share", h.CreateShare)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})
	return r
}
