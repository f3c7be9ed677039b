package push

import (
	"context"
	"log/slog"

	domainchat "toytrade/internal/domain/chat"
)

// LogNotifier records offline notifications instead of delivering them.
// Default for dev and tests.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyOffline(ctx context.Context, userID string, msg *domainchat.Message) error {
	if n.Logger != nil {
		n.Logger.Info("offline notification",
			"user_id", userID,
			"conversation_id", msg.ConversationID,
			"message_id", msg.ID,
		)
	}
	return nil
}
