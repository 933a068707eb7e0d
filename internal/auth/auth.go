// Package auth validates Spider keys, OAuth session tokens, and the
// optional JWT session mode for the gateway, and carries the resulting
// permission set through request context.
package auth

import (
	"errors"
	"time"
)

var (
	ErrAuthDisabled = errors.New("auth disabled")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid api key")
	ErrForbidden    = errors.New("permission denied")
)

// KeyValidator is satisfied by internal/keystore.Store. Kept as an
// interface so the gateway can be tested against a stub.
type KeyValidator interface {
	ValidatePermission(key, permission string) bool
	ValidateKeyPresence(key string) bool
}

// Config configures the optional JWT session layer. Spider keys and OAuth
// tokens are always accepted regardless of this config; JWT is an
// additional, opt-in way to avoid resending a raw key on every request.
type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// Service validates auth_key values presented to the gateway and,
// optionally, session JWTs minted from them.
type Service struct {
	jwt  *JWTService
	keys KeyValidator
}

// NewService constructs an auth service backed by the given key validator.
func NewService(cfg Config, keys KeyValidator) *Service {
	s := &Service{keys: keys}
	if cfg.JWTSecret != "" {
		s.jwt = NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	}
	return s
}

// JWTEnabled reports whether session JWTs can be minted and validated.
func (s *Service) JWTEnabled() bool {
	return s != nil && s.jwt != nil
}

// GenerateSessionToken mints a JWT bound to key, provided key currently
// holds permissions.
func (s *Service) GenerateSessionToken(key string, permissions []string) (string, error) {
	if s == nil || s.jwt == nil {
		return "", ErrAuthDisabled
	}
	return s.jwt.Generate(key, permissions)
}

// ValidateSessionToken validates a JWT and re-checks the embedded
// permission set against the live key store, so a revoked key's session
// tokens stop working immediately rather than surviving until expiry.
func (s *Service) ValidateSessionToken(token, permission string) (string, error) {
	if s == nil || s.jwt == nil {
		return "", ErrAuthDisabled
	}
	key, _, err := s.jwt.Validate(token)
	if err != nil {
		return "", err
	}
	if permission != "" && !s.keys.ValidatePermission(key, permission) {
		return "", ErrForbidden
	}
	return key, nil
}

// ValidateKey checks key against the key store, requiring permission if
// non-empty.
func (s *Service) ValidateKey(key, permission string) error {
	if s == nil || s.keys == nil {
		return ErrAuthDisabled
	}
	if !s.keys.ValidateKeyPresence(key) {
		return ErrInvalidKey
	}
	if permission != "" && !s.keys.ValidatePermission(key, permission) {
		return ErrForbidden
	}
	return nil
}
