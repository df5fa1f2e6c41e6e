// Package share creates share links for indexed notes and resolves them for
// anonymous readers.
package share

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// TokenBytes is the entropy of a share token; tokens are hex encoded.
const TokenBytes = 16

// CreateInput is the payload for Create.
type CreateInput struct {
	Path             string
	BurnAfterReading bool
	Password         string
}

// Service implements share creation and resolution.
type Service struct {
	store      storage.Provider
	index      *indexstore.Store
	logger     *slog.Logger
	bcryptCost int
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost for share passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// NewService creates a share service.
func NewService(store storage.Provider, index *indexstore.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, index: index, logger: logger, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create shares the indexed note at Path under a fresh token. Sharing an
// already shared note rotates its token.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.ShareLink, error) {
	if in.Path == "" {
		return nil, fmt.Errorf("share: path is required: %w", apperr.ErrInvalidInput)
	}
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	var hash string
	if in.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("share: hash password: %w", err)
		}
		hash = string(h)
	}

	err = s.index.Update(ctx, func(doc *indexstore.Document) error {
		e := doc.Find(in.Path)
		if e == nil {
			return fmt.Errorf("share: %s is not indexed: %w", in.Path, apperr.ErrNotFound)
		}
		e.ShareToken = token
		e.BurnAfterReading = in.BurnAfterReading
		e.PasswordHash = hash
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &models.ShareLink{
		Path:             in.Path,
		Token:            token,
		BurnAfterReading: in.BurnAfterReading,
		Protected:        hash != "",
	}, nil
}

// Resolve returns the note shared under token. Burn-after-reading shares are
// claimed under the index lock so only one reader receives the content; the
// file is removed afterwards on a best-effort basis.
func (s *Service) Resolve(ctx context.Context, token, password string) (*models.SharedNote, error) {
	if token == "" {
		return nil, fmt.Errorf("share: token is required: %w", apperr.ErrInvalidInput)
	}
	doc, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("share: load index: %w", err)
	}
	e := doc.FindByToken(token)
	if e == nil {
		return nil, fmt.Errorf("share: unknown token: %w", apperr.ErrNotFound)
	}
	if err := checkPassword(e.PasswordHash, password); err != nil {
		return nil, err
	}
	if !e.BurnAfterReading {
		content, err := s.read(e.Path)
		if err != nil {
			return nil, err
		}
		return &models.SharedNote{Path: e.Path, Name: e.Name, Content: content}, nil
	}
	return s.burn(ctx, token, *e)
}

func (s *Service) burn(ctx context.Context, token string, seen indexstore.Entry) (*models.SharedNote, error) {
	var (
		claimed *indexstore.Entry
		content string
	)
	err := s.index.Update(ctx, func(doc *indexstore.Document) error {
		e := doc.FindByToken(token)
		if e == nil {
			return fmt.Errorf("share: token already consumed: %w", apperr.ErrNotFound)
		}
		c, err := s.read(e.Path)
		if err != nil {
			return err
		}
		entry := *e
		claimed, content = &entry, c
		doc.Remove(entry.Path)
		return nil
	})
	switch {
	case claimed != nil:
		if err != nil {
			s.logger.Warn("share: burned entry still indexed",
				slog.String("path", claimed.Path), slog.String("error", err.Error()))
		}
	case err != nil && apperr.Public(err):
		return nil, err
	case err != nil:
		// The index could not be locked or written; serve the read anyway.
		s.logger.Warn("share: burn without index update",
			slog.String("path", seen.Path), slog.String("error", err.Error()))
		c, rerr := s.read(seen.Path)
		if rerr != nil {
			return nil, rerr
		}
		entry := seen
		claimed, content = &entry, c
	}

	if err := s.store.Delete(claimed.Path); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("share: burned file not removed",
			slog.String("path", claimed.Path), slog.String("error", err.Error()))
	}
	return &models.SharedNote{Path: claimed.Path, Name: claimed.Name, Content: content, BurnAfterReading: true}, nil
}

func (s *Service) read(p string) (string, error) {
	if _, err := s.store.Contain(p); err != nil {
		return "", err
	}
	data, err := s.store.Read(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func checkPassword(hash, password string) error {
	if hash == "" {
		return nil
	}
	if password == "" {
		return fmt.Errorf("share: password required: %w", apperr.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("share: wrong password: %w", apperr.ErrUnauthorized)
	}
	return nil
}

// NewToken returns 128 random bits, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("share: token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// URL builds the public link for token under base, e.g. https://host.
func URL(base, token string) string {
	return strings.TrimRight(base, "/") + "/share.html?token=" + url.QueryEscape(token)
}
