package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/ansuz/internal/apperr"
)

// CookieName is the session cookie set on login.
const CookieName = "ansuz_session"

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// Session is an authenticated login.
type Session struct {
	ID        string
	Username  string
	LoginTime time.Time
	ExpiresAt time.Time
}

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Gate authenticates users and tracks their sessions. One Gate is built per
// server from configuration.
type Gate struct {
	creds  *Credentials
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	limit  *limiter

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Gate.
type Option func(*Gate)

// WithSecret sets the JWT signing key. A random key is used when unset, which
// invalidates sessions on restart.
func WithSecret(secret string) Option {
	return func(g *Gate) {
		if secret != "" {
			g.secret = []byte(secret)
		}
	}
}

// WithSessionTTL sets the session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithLoginRate throttles login attempts to requests per window per client.
// Non-positive values disable throttling.
func WithLoginRate(requests int, window time.Duration) Option {
	return func(g *Gate) {
		if requests > 0 && window > 0 {
			g.limit = newLimiter(requests, window)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate for the given credential set.
func NewGate(creds *Credentials, opts ...Option) (*Gate, error) {
	g := &Gate{
		creds:    creds,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.secret == nil {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("auth: session secret: %w", err)
		}
		g.secret = key
	}
	return g, nil
}

// TTL returns the session lifetime.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Login verifies the credentials and opens a session. client identifies the
// caller for throttling, typically its IP address.
func (g *Gate) Login(client, username, password string) (string, *Session, error) {
	if username == "" || password == "" {
		return "", nil, fmt.Errorf("auth: username and password are required: %w", apperr.ErrInvalidInput)
	}
	now := g.now()
	if g.limit != nil && !g.limit.allow(client, now) {
		return "", nil, fmt.Errorf("auth: login attempts from %s: %w", client, apperr.ErrRateLimited)
	}
	if !g.creds.Verify(username, password) {
		return "", nil, fmt.Errorf("auth: invalid credentials: %w", apperr.ErrUnauthorized)
	}

	sid, err := newSessionID()
	if err != nil {
		return "", nil, err
	}
	s := &Session{ID: sid, Username: username, LoginTime: now, ExpiresAt: now.Add(g.ttl)}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign session: %w", err)
	}

	g.mu.Lock()
	g.prune(now)
	g.sessions[sid] = s
	g.mu.Unlock()
	return signed, s, nil
}

// Authenticate returns the live session behind token.
func (g *Gate) Authenticate(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("auth: no session: %w", apperr.ErrUnauthorized)
	}
	c, err := g.parse(token)
	if err != nil {
		return nil, fmt.Errorf("auth: %w: %w", apperr.ErrUnauthorized, err)
	}
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[c.SessionID]
	if !ok || s.Username != c.Subject {
		return nil, fmt.Errorf("auth: session ended: %w", apperr.ErrUnauthorized)
	}
	if !now.Before(s.ExpiresAt) {
		delete(g.sessions, c.SessionID)
		return nil, fmt.Errorf("auth: session expired: %w", apperr.ErrUnauthorized)
	}
	cp := *s
	return &cp, nil
}

// Logout ends the session behind token. Unknown or invalid tokens are ignored.
func (g *Gate) Logout(token string) {
	c, err := g.parse(token)
	if err != nil {
		return
	}
	g.mu.Lock()
	delete(g.sessions, c.SessionID)
	g.mu.Unlock()
}

// Close releases the login throttling resources.
func (g *Gate) Close() {
	if g.limit != nil {
		g.limit.close()
	}
}

func (g *Gate) parse(token string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if c.SessionID == "" {
		return nil, errors.New("token without session id")
	}
	return c, nil
}

// prune drops expired sessions. Callers hold g.mu.
func (g *Gate) prune(now time.Time) {
	for id, s := range g.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(g.sessions, id)
		}
	}
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type ctxKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
