package assistant

import (
	"context"
	"fmt"

	"medtrack/internal/apperr"
	"medtrack/internal/models"
)

// Send stores the user's message and the bot reply as one write and
// returns them in that order.
func (s *Service) Send(ctx context.Context, userID int64, content string) ([]*models.Message, error) {
	userMsg := models.Message{UserID: userID, Content: content}
	if err := userMsg.Validate(); err != nil {
		return nil, err
	}
	botMsg := models.Message{UserID: userID, Content: Reply(content), IsBot: true}
	pair, err := s.store.CreateMessages(ctx, userMsg, botMsg)
	if err != nil {
		if apperr.KindOf(err) == apperr.Validation {
			return nil, err
		}
		return nil, fmt.Errorf("store messages: %w", err)
	}
	s.log.Debug("chat reply sent", "user_id", userID, "message_id", pair[0].ID)
	return pair, nil
}

// History returns the transcript oldest first.
func (s *Service) History(ctx context.Context, userID int64) ([]*models.Message, error) {
	msgs, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}
