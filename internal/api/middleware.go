package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/starford/ansuz/internal/auth"
)

// RequireSession rejects requests without a live session and stores the
// session in the request context.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.gate.Authenticate(sessionToken(r))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), s)))
	})
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(auth.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// clientIP returns the host part of RemoteAddr. chi's RealIP middleware is
// expected to have applied X-Forwarded-For before this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// baseURL returns the public origin links should point at.
func (h *Handler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if isSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
