package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"medtrack/internal/apperr"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// HashPassword returns a bcrypt hash with the salt embedded.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password required")
	}
	if len(password) > MaxPasswordBytes {
		return "", apperr.Validationf("Validation error: password must be at most %d bytes", MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
