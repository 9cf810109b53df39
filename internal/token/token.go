// Package token issues and decodes the signed tokens used for sessions and
// email confirmation.
//
// Every token carries the subject (the user's email), issue and expiry
// times, a random id and a scope. A token is only accepted by the decoder of
// its own scope, so a refresh token can never be presented as an access
// token and vice versa.
//
// Decoding checks, in order: signature and format, expiry, scope.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBadSignature covers malformed tokens, wrong algorithms and wrong secrets
	ErrBadSignature = errors.New("token signature is invalid")
	ErrExpired      = errors.New("token has expired")
	ErrInvalidScope = errors.New("token scope is invalid")
)

// Scope distinguishes what a token may be used for
type Scope string

const (
	ScopeAccess       Scope = "access"
	ScopeRefresh      Scope = "refresh"
	ScopeConfirmation Scope = "confirmation"
)

// Supported algorithms
const (
	AlgHS256   = "HS256"
	AlgHS384   = "HS384"
	AlgHS512   = "HS512"
	AlgV4Local = "v4.local"
)

// Config is the immutable token configuration
type Config struct {
	Secret          []byte
	Algorithm       string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	ConfirmationTTL time.Duration
}

// Claims are the decoded contents of a token
type Claims struct {
	ID        string
	Subject   string
	Scope     Scope
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// codec signs claims and verifies the signature of a serialized token.
// Implementations include pasetoCodec (PASETO v4.local) and jwtCodec (HS256/384/512).
// decode must not check expiry; Service does that against its own clock.
type codec interface {
	encode(c Claims) (string, error)
	decode(raw string) (*Claims, error)
}

// Service issues and decodes tokens. It performs no I/O and is safe for concurrent use.
type Service struct {
	cfg   Config
	codec codec
	now   func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now, used by tests to move across expiry
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ConfirmationTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	var (
		c   codec
		err error
	)
	switch cfg.Algorithm {
	case AlgHS256, AlgHS384, AlgHS512:
		c, err = newJWTCodec(cfg.Algorithm, cfg.Secret)
	case AlgV4Local:
		c, err = newPasetoCodec(cfg.Secret)
	default:
		return nil, fmt.Errorf("unsupported token algorithm %q", cfg.Algorithm)
	}
	if err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, codec: c, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) IssueAccess(subject string) (string, error) {
	return s.issue(subject, ScopeAccess, s.cfg.AccessTTL)
}

func (s *Service) IssueRefresh(subject string) (string, error) {
	return s.issue(subject, ScopeRefresh, s.cfg.RefreshTTL)
}

func (s *Service) IssueConfirmation(subject string) (string, error) {
	return s.issue(subject, ScopeConfirmation, s.cfg.ConfirmationTTL)
}

func (s *Service) DecodeAccess(raw string) (string, error) {
	return s.subject(raw, ScopeAccess)
}

func (s *Service) DecodeRefresh(raw string) (string, error) {
	return s.subject(raw, ScopeRefresh)
}

func (s *Service) DecodeConfirmation(raw string) (string, error) {
	return s.subject(raw, ScopeConfirmation)
}

// AccessTTL is reported to clients as expires_in
func (s *Service) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

// ConfirmationTTL is how long an emailed confirmation link stays valid
func (s *Service) ConfirmationTTL() time.Duration {
	return s.cfg.ConfirmationTTL
}

// Decode verifies raw and returns its claims if it was issued for scope
func (s *Service) Decode(raw string, scope Scope) (*Claims, error) {
	claims, err := s.codec.decode(raw)
	if err != nil {
		return nil, ErrBadSignature
	}

	if !s.now().Before(claims.ExpiresAt) {
		return nil, ErrExpired
	}

	if claims.Scope != scope {
		return nil, ErrInvalidScope
	}

	return claims, nil
}

func (s *Service) issue(subject string, scope Scope, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty")
	}

	// Truncate so both codecs round-trip the same instant
	now := s.now().UTC().Truncate(time.Second)

	raw, err := s.codec.encode(Claims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", scope, err)
	}
	return raw, nil
}

func (s *Service) subject(raw string, scope Scope) (string, error) {
	claims, err := s.Decode(raw, scope)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
