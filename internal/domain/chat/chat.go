package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrConversationNotFound is returned when a conversation does not exist.
	ErrConversationNotFound = errors.New("chat: conversation not found")
	// ErrMessageNotFound is returned when a message does not exist.
	ErrMessageNotFound = errors.New("chat: message not found")
	// ErrNotParticipant is returned when the acting user does not belong to
	// the conversation. Callers surface it like a not-found so that
	// non-participants cannot probe for conversation existence.
	ErrNotParticipant = errors.New("chat: not a participant")
	// ErrEmptyContent is returned for text messages without content.
	ErrEmptyContent = errors.New("chat: content is required")
	// ErrInvalidMessageType is returned for unknown message types.
	ErrInvalidMessageType = errors.New("chat: invalid message type")
)

// MessageType enumerates supported message payloads.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// ParseMessageType validates a wire-level type string. An empty string
// defaults to text.
func ParseMessageType(raw string) (MessageType, error) {
	switch MessageType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MessageText:
		return MessageText, nil
	case MessageImage:
		return MessageImage, nil
	case MessageFile:
		return MessageFile, nil
	default:
		return "", ErrInvalidMessageType
	}
}

// Conversation is a two-party thread anchored to a listing. Exactly one
// conversation exists per (buyer, seller, listing) triple.
type Conversation struct {
	ID        string
	ListingID string
	BuyerID   string
	SellerID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasParticipant reports whether the user belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.BuyerID || userID == c.SellerID)
}

// OtherParticipant returns the counterpart of the given user, or "" if the
// user is not a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.BuyerID:
		return c.SellerID
	case c.SellerID:
		return c.BuyerID
	default:
		return ""
	}
}

// Message is an immutable unit of communication. Only ReadAt ever changes
// after creation, and only from nil to a timestamp.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Type           MessageType
	MediaURL       string
	CreatedAt      time.Time
	ReadAt         *time.Time
}
