package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirechat-realtime/internal/store"
)

var (
	// ErrUnauthorized is returned when a presented credential does not resolve to an identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned when phone/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Verifier resolves a bearer credential to the identity it was issued for.
type Verifier interface {
	Authenticate(token string) (string, error)
}

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
// userStore may be nil when only token verification is needed.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Authenticate validates a bearer token and returns the owning identity.
// Any failure is reported as ErrUnauthorized wrapping the cause.
func (s *Service) Authenticate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims.UserID(), nil
}

// IssueToken mints a token for an existing user id.
func (s *Service) IssueToken(userID, name string) (string, error) {
	token, err := GenerateToken(s.jwtConfig, userID, name)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Login validates phone/password credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, phoneNumber, password string) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("login: no user store configured")
	}
	user, err := s.store.GetUserByPhone(ctx, strings.TrimSpace(phoneNumber))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	return s.IssueToken(user.ID, user.Name)
}

var _ Verifier = (*Service)(nil)
