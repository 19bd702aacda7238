package models

import "time"

// User is an account. PasswordHash is a bcrypt string with its salt embedded.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Validate checks the fields required to persist a user.
func (u *User) Validate() error {
	if isBlank(u.Username) {
		return fieldError("username", "is required")
	}
	if u.PasswordHash == "" {
		return fieldError("password", "is required")
	}
	return nil
}
