package chat

import "time"

// Realtime channel event names. Client-to-server and server-to-client share
// the same vocabulary; direction is documented per handler.
const (
	EventConversationJoin    = "conversation:join"
	EventConversationDeleted = "conversation:deleted"
	EventMessageSend         = "message:send"
	EventMessageNew          = "message:new"
	EventMessageRead         = "message:read"
	EventMessagesRead        = "messages:read"
	EventTypingStart         = "typing:start"
	EventTypingStop          = "typing:stop"
	EventUserOnline          = "user:online"
	EventUserOffline         = "user:offline"
	EventError               = "error"
)

// MessageEvent is the backplane payload for a newly persisted message. It
// carries the fully persisted message so receiving processes never need a
// store round-trip before delivering.
type MessageEvent struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Content        string      `json:"content,omitempty"`
	Type           MessageType `json:"type"`
	MediaURL       string      `json:"mediaUrl,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	ReadAt         *time.Time  `json:"readAt,omitempty"`
}

// NewMessageEvent converts a persisted message into its wire form.
func NewMessageEvent(m *Message) MessageEvent {
	return MessageEvent{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           m.Type,
		MediaURL:       m.MediaURL,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}

// TypingEvent signals a typing state change inside a conversation. Never
// persisted; it exists only in flight.
type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// ReceiptEvent covers both single-message and whole-conversation read
// receipts. All=true means every unread message from the other party was
// marked in one sweep and clients should refresh the conversation.
type ReceiptEvent struct {
	ConversationID string     `json:"conversationId"`
	MessageID      string     `json:"messageId,omitempty"`
	ReaderID       string     `json:"readerId,omitempty"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	All            bool       `json:"all,omitempty"`
}

// PresenceEvent announces a user going online or offline on some process.
type PresenceEvent struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// ConversationEvent announces that a conversation was removed, so every
// process can drop its local room for it.
type ConversationEvent struct {
	ConversationID string `json:"conversationId"`
	DeletedBy      string `json:"deletedBy,omitempty"`
}
