package chat

import (
	"context"
	"time"

	domainchat "toytrade/internal/domain/chat"
)

// Store is the persistence gateway: the single source of truth for
// conversations and messages. Implementations must serialize concurrent
// writes to a conversation's UpdatedAt (last-write-wins is acceptable).
type Store interface {
	// FindOrCreateConversation returns the unique conversation for the
	// (buyer, seller, listing) triple, creating it on first contact. The
	// participant pair matches in either order. The second return reports
	// whether a new conversation was created.
	FindOrCreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (*domainchat.Conversation, bool, error)

	ConversationByID(ctx context.Context, id string) (*domainchat.Conversation, error)

	// ConversationsForUser lists every conversation the user participates
	// in, most recently active first.
	ConversationsForUser(ctx context.Context, userID string) ([]*domainchat.Conversation, error)

	// DeleteConversation hard-deletes the conversation and cascades to its
	// messages.
	DeleteConversation(ctx context.Context, id string) error

	// AppendMessage persists a message, assigning id and creation timestamp,
	// and bumps the conversation's UpdatedAt in the same operation.
	AppendMessage(ctx context.Context, conversationID, senderID, content string, msgType domainchat.MessageType, mediaURL string) (*domainchat.Message, error)

	MessageByID(ctx context.Context, id string) (*domainchat.Message, error)

	// Messages returns one page in ascending creation order. page is
	// 1-based.
	Messages(ctx context.Context, conversationID string, page, limit int) ([]domainchat.Message, error)

	LastMessage(ctx context.Context, conversationID string) (*domainchat.Message, error)

	// UnreadCount counts messages in the conversation not sent by userID
	// and not yet read.
	UnreadCount(ctx context.Context, conversationID, userID string) (int, error)

	// MarkRead sets the read timestamp if absent. The bool reports whether
	// a transition happened; marking an already-read message is a no-op.
	MarkRead(ctx context.Context, messageID string, at time.Time) (*domainchat.Message, bool, error)

	// MarkAllRead marks every unread message in the conversation not sent
	// by readerID and returns how many transitioned.
	MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error)
}
