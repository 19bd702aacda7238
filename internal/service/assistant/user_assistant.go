package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/facebookgo/clock"

	"medtrack/internal/apperr"
	"medtrack/internal/auth"
	"medtrack/internal/logger"
	"medtrack/internal/models"
	"medtrack/internal/storage"
)

// WelcomeMessage seeds every new transcript.
const WelcomeMessage = "Hello! I'm your PGF Assistant. How can I help you today?"

// Service handles the user lifecycle and the chat transcript.
type Service struct {
	store storage.Store
	clock clock.Clock
	log   *logger.Logger
}

// NewService builds a new assistant service.
func NewService(store storage.Store, clk clock.Clock, log *logger.Logger) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, clock: clk, log: log}
}

type Registration struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// RegisterUser creates the account and greets the user in the transcript.
func (s *Service) RegisterUser(ctx context.Context, in Registration) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, apperr.Validationf("Username and password are required")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperr.Validationf("Validation error: password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.store.CreateUser(ctx, models.User{
		Username:     username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.TrimSpace(in.Email),
		CreatedAt:    s.clock.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Conflict, "Username already exists", err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if _, err := s.store.CreateMessages(ctx, models.Message{
		UserID:  user.ID,
		Content: WelcomeMessage,
		IsBot:   true,
	}); err != nil {
		// signup still succeeds without the greeting
		s.log.Warn("welcome message failed", "user_id", user.ID, "error", err)
	}
	s.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login validates credentials and returns the user profile.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validationf("Username and password are required")
	}
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthenticated, "Invalid username or password")
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.New(apperr.Unauthenticated, "Invalid username or password")
	}
	return user, nil
}

// Profile returns the authenticated user's record.
func (s *Service) Profile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthenticated, "Not authenticated")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
