package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/facebookgo/clock"

	"medtrack/internal/apperr"
)

// Service issues, validates, and revokes user authentication tokens.
type Service struct {
	tokens         TokenStore
	clock          clock.Clock
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs an auth service with the supplied token lifetime.
// A nil clock uses the wall clock.
func NewService(tokens TokenStore, clk clock.Clock, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		tokens:         tokens,
		clock:          clk,
		tokenTTL:       ttl,
		cookieName:     "auth_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// IssueToken mints a new random token for the user and persists it.
func (s *Service) IssueToken(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", errors.New("invalid user id")
	}
	expiresAt := s.clock.Now().Add(s.tokenTTL)
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		_, _, err = s.tokens.Lookup(ctx, token)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrTokenNotFound) {
			return "", err
		}
		if err := s.tokens.Save(ctx, token, userID, expiresAt); err != nil {
			return "", err
		}
		return token, nil
	}
	return "", errors.New("could not issue token")
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// ValidateToken verifies the token exists and has not expired, returning the user id.
func (s *Service) ValidateToken(ctx context.Context, authToken string) (int64, error) {
	if authToken == "" {
		return 0, apperr.New(apperr.Unauthenticated, "Not authenticated")
	}
	userID, expires, err := s.tokens.Lookup(ctx, authToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return 0, apperr.New(apperr.Unauthenticated, "Not authenticated")
		}
		return 0, fmt.Errorf("lookup token: %w", err)
	}
	if s.clock.Now().After(expires) {
		_ = s.tokens.Delete(ctx, authToken)
		return 0, apperr.New(apperr.Unauthenticated, "Session expired")
	}
	return userID, nil
}

// RevokeToken deletes a single token.
func (s *Service) RevokeToken(ctx context.Context, authToken string) error {
	if authToken == "" {
		return nil
	}
	if err := s.tokens.Delete(ctx, authToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeUserTokens removes all tokens belonging to the user.
func (s *Service) RevokeUserTokens(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return nil
	}
	if err := s.tokens.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) AuthCookieName() string {
	return s.cookieName
}

func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
