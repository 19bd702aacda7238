package models

import "time"

// Message is one chat transcript entry, sent either by the user or the bot.
type Message struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Content   string    `json:"content"`
	IsBot     bool      `json:"isBot"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m *Message) Validate() error {
	if m.UserID <= 0 {
		return fieldError("userId", "is required")
	}
	if isBlank(m.Content) {
		return fieldError("content", "is required")
	}
	return nil
}
