package dto

import (
	"time"

	"toytrade/internal/domain/catalog"
	domainchat "toytrade/internal/domain/chat"
)

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Content        string     `json:"content,omitempty"`
	Type           string     `json:"type"`
	MediaURL       string     `json:"mediaUrl,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// NewChatMessage maps a persisted message to its response form.
func NewChatMessage(m *domainchat.Message) ChatMessage {
	return ChatMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           string(m.Type),
		MediaURL:       m.MediaURL,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}

// Conversation describes one chat thread with the extras the inbox screen
// renders: last message, unread count, listing and counterpart summaries.
type Conversation struct {
	ID          string                  `json:"id"`
	ListingID   string                  `json:"listingId"`
	BuyerID     string                  `json:"buyerId"`
	SellerID    string                  `json:"sellerId"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
	Listing     *catalog.ListingSummary `json:"listing,omitempty"`
	OtherUser   *catalog.UserSummary    `json:"otherUser,omitempty"`
	LastMessage *ChatMessage            `json:"lastMessage,omitempty"`
	UnreadCount int                     `json:"unreadCount"`
}

// NewConversation maps the bare entity; callers fill the enrichment fields.
func NewConversation(c *domainchat.Conversation) Conversation {
	return Conversation{
		ID:        c.ID,
		ListingID: c.ListingID,
		BuyerID:   c.BuyerID,
		SellerID:  c.SellerID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ConversationList is the GET /conversations response body.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessageList is one ascending page of conversation history.
type ChatMessageList struct {
	Items []ChatMessage `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// CreateConversationRequest is the POST /conversations body.
type CreateConversationRequest struct {
	OtherUserID string `json:"otherUserId"`
	ListingID   string `json:"listingId"`
}

// UploadResponse returns the public URL of stored chat media.
type UploadResponse struct {
	URL string `json:"url"`
}
