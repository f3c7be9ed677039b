package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"toytrade/internal/app/dto"
	"toytrade/internal/chat"
	"toytrade/internal/domain/catalog"
	domainchat "toytrade/internal/domain/chat"
)

// ChatHTTP exposes the conversation REST surface.
type ChatHTTP interface {
	ListMyConversations(c *gin.Context)
	CreateConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	DeleteConversation(c *gin.Context)
}

// ChatHandler serves conversations and message history straight from the
// store; realtime delivery lives on the websocket side. Deletion goes through
// the dispatcher so connected clients hear about it.
type ChatHandler struct {
	Store      chat.Store
	Dispatcher *chat.Dispatcher
	Listings   catalog.ListingDirectory
	Users      catalog.UserDirectory
	Logger     *slog.Logger
}

// ListMyConversations returns the authenticated user's inbox, most recently
// active first, each entry enriched with last message, unread count and
// listing/counterpart summaries.
func (h ChatHandler) ListMyConversations(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	conversations, err := h.Store.ConversationsForUser(ctx, p.ID)
	if err != nil {
		h.logError("list conversations failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load conversations"})
		return
	}

	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(conversations))}
	for _, conv := range conversations {
		entry := dto.NewConversation(conv)

		if last, err := h.Store.LastMessage(ctx, conv.ID); err == nil {
			msg := dto.NewChatMessage(last)
			entry.LastMessage = &msg
		}
		if unread, err := h.Store.UnreadCount(ctx, conv.ID, p.ID); err == nil {
			entry.UnreadCount = unread
		}
		if h.Listings != nil {
			if listing, err := h.Listings.ListingByID(ctx, conv.ListingID); err == nil {
				entry.Listing = &listing
			}
		}
		if h.Users != nil {
			if other, err := h.Users.UserByID(ctx, conv.OtherParticipant(p.ID)); err == nil {
				entry.OtherUser = &other
			}
		}
		collection.Items = append(collection.Items, entry)
	}
	c.JSON(http.StatusOK, collection)
}

// CreateConversation finds or creates the unique thread for (buyer, seller,
// listing). Calling it twice with the same pair, in either role, returns the
// same conversation.
func (h ChatHandler) CreateConversation(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.OtherUserID = strings.TrimSpace(req.OtherUserID)
	req.ListingID = strings.TrimSpace(req.ListingID)
	if req.OtherUserID == "" || req.ListingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "otherUserId and listingId are required"})
		return
	}
	if req.OtherUserID == p.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start chat with yourself"})
		return
	}

	ctx := c.Request.Context()
	listing, err := h.Listings.ListingByID(ctx, req.ListingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}

	// The listing owner is the seller regardless of who opens the thread.
	buyerID, sellerID := p.ID, req.OtherUserID
	if listing.SellerID == p.ID {
		buyerID, sellerID = req.OtherUserID, p.ID
	}

	conv, _, err := h.Store.FindOrCreateConversation(ctx, req.ListingID, buyerID, sellerID)
	if err != nil {
		h.logError("find-or-create conversation failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot create conversation"})
		return
	}
	c.JSON(http.StatusOK, dto.NewConversation(conv))
}

// ListMessages returns one ascending page of history. Non-participants get a
// not-found, indistinguishable from a conversation that does not exist.
func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}

	ctx := c.Request.Context()
	conv, err := h.Store.ConversationByID(ctx, conversationID)
	if err != nil || !conv.HasParticipant(p.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	page := parsePositiveIntStrict(c.Query("page"), 1)
	limit := parsePositiveIntStrict(c.Query("limit"), 50)
	messages, err := h.Store.Messages(ctx, conversationID, page, limit)
	if err != nil {
		h.logError("list messages failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load messages"})
		return
	}

	collection := dto.ChatMessageList{
		Items: make([]dto.ChatMessage, 0, len(messages)),
		Page:  page,
		Limit: limit,
	}
	for i := range messages {
		collection.Items = append(collection.Items, dto.NewChatMessage(&messages[i]))
	}
	c.JSON(http.StatusOK, collection)
}

// DeleteConversation hard-deletes the thread and its messages. Either
// participant may delete; everyone else gets a not-found.
func (h ChatHandler) DeleteConversation(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}

	err := h.Dispatcher.Delete(c.Request.Context(), conversationID, p.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	case errors.Is(err, domainchat.ErrConversationNotFound), errors.Is(err, domainchat.ErrNotParticipant):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	default:
		h.logError("delete conversation failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot delete conversation"})
	}
}

func (h ChatHandler) logError(msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error(msg, "error", err)
	}
}

func parsePositiveIntStrict(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

var _ ChatHTTP = (*ChatHandler)(nil)
