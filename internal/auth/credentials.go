// Package auth holds the server's credential set, session table and login
// throttling.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/ansuz/internal/apperr"
)

// Credentials maps usernames to bcrypt hashes.
type Credentials struct {
	hashes map[string][]byte
	dummy  []byte
}

// ParseCredentials reads "user:password" pairs separated by commas. Passwords
// already in bcrypt form are kept; plain ones are hashed with cost.
func ParseCredentials(list string, cost int) (*Credentials, error) {
	pairs := map[string]string{}
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		user, pass, ok := strings.Cut(item, ":")
		user, pass = strings.TrimSpace(user), strings.TrimSpace(pass)
		if !ok || user == "" || pass == "" {
			return nil, fmt.Errorf("auth: malformed credential %q: %w", user, apperr.ErrInvalidInput)
		}
		pairs[user] = pass
	}
	return NewCredentials(pairs, cost)
}

// NewCredentials hashes the plain passwords in pairs.
func NewCredentials(pairs map[string]string, cost int) (*Credentials, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("ansuz-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	c := &Credentials{hashes: make(map[string][]byte, len(pairs)), dummy: dummy}
	for user, pass := range pairs {
		if IsHash(pass) {
			c.hashes[user] = []byte(pass)
			continue
		}
		h, err := bcrypt.GenerateFromPassword([]byte(pass), cost)
		if err != nil {
			return nil, fmt.Errorf("auth: hash password for %s: %w", user, err)
		}
		c.hashes[user] = h
	}
	return c, nil
}

// IsHash reports whether s looks like a bcrypt hash.
func IsHash(s string) bool {
	if !strings.HasPrefix(s, "$2a$") && !strings.HasPrefix(s, "$2b$") && !strings.HasPrefix(s, "$2y$") {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// Len returns the number of configured users.
func (c *Credentials) Len() int {
	return len(c.hashes)
}

// Verify reports whether pass matches user's password. Unknown users are
// compared against a dummy hash so both paths cost the same.
func (c *Credentials) Verify(user, pass string) bool {
	hash, ok := c.hashes[user]
	if !ok {
		hash = c.dummy
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(pass))
	return ok && err == nil
}

// HashPassword returns a bcrypt hash suitable for the users setting.
func HashPassword(pass string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
