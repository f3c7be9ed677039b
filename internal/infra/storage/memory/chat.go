package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainchat "toytrade/internal/domain/chat"
)

// ChatStore is an in-memory persistence gateway used by tests and single-node
// dev runs. Messages are kept in append order per conversation, so creation
// order and persistence order coincide.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[string]*domainchat.Conversation
	messages      map[string][]*domainchat.Message // conversation id -> append-ordered
	byMessageID   map[string]*domainchat.Message
	lastStamp     time.Time
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[string]*domainchat.Conversation),
		messages:      make(map[string][]*domainchat.Message),
		byMessageID:   make(map[string]*domainchat.Message),
	}
}

func (s *ChatStore) FindOrCreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (*domainchat.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.conversations {
		if conv.ListingID != listingID {
			continue
		}
		if samePair(conv.BuyerID, conv.SellerID, buyerID, sellerID) {
			return cloneConversation(conv), false, nil
		}
	}
	now := time.Now().UTC()
	conv := &domainchat.Conversation{
		ID:        uuid.NewString(),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	return cloneConversation(conv), true, nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id string) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

func (s *ChatStore) ConversationsForUser(ctx context.Context, userID string) ([]*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domainchat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, cloneConversation(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *ChatStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return domainchat.ErrConversationNotFound
	}
	delete(s.conversations, id)
	for _, msg := range s.messages[id] {
		delete(s.byMessageID, msg.ID)
	}
	delete(s.messages, id)
	return nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, conversationID, senderID, content string, msgType domainchat.MessageType, mediaURL string) (*domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	now := time.Now().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = now
	msg := &domainchat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		MediaURL:       mediaURL,
		CreatedAt:      now,
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.byMessageID[msg.ID] = msg
	conv.UpdatedAt = now
	return cloneMessage(msg), nil
}

func (s *ChatStore) MessageByID(ctx context.Context, id string) (*domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.byMessageID[id]
	if !ok {
		return nil, domainchat.ErrMessageNotFound
	}
	return cloneMessage(msg), nil
}

func (s *ChatStore) Messages(ctx context.Context, conversationID string, page, limit int) ([]domainchat.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	all := s.messages[conversationID]
	start := (page - 1) * limit
	if start >= len(all) {
		return []domainchat.Message{}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]domainchat.Message, 0, end-start)
	for _, msg := range all[start:end] {
		out = append(out, *cloneMessage(msg))
	}
	return out, nil
}

func (s *ChatStore) LastMessage(ctx context.Context, conversationID string) (*domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	if len(all) == 0 {
		return nil, domainchat.ErrMessageNotFound
	}
	return cloneMessage(all[len(all)-1]), nil
}

func (s *ChatStore) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, msg := range s.messages[conversationID] {
		if msg.SenderID != userID && msg.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *ChatStore) MarkRead(ctx context.Context, messageID string, at time.Time) (*domainchat.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byMessageID[messageID]
	if !ok {
		return nil, false, domainchat.ErrMessageNotFound
	}
	if msg.ReadAt != nil {
		return cloneMessage(msg), false, nil
	}
	stamp := at
	msg.ReadAt = &stamp
	return cloneMessage(msg), true, nil
}

func (s *ChatStore) MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return 0, domainchat.ErrConversationNotFound
	}
	count := 0
	for _, msg := range s.messages[conversationID] {
		if msg.SenderID == readerID || msg.ReadAt != nil {
			continue
		}
		stamp := at
		msg.ReadAt = &stamp
		count++
	}
	return count, nil
}

func samePair(a1, a2, b1, b2 string) bool {
	return (a1 == b1 && a2 == b2) || (a1 == b2 && a2 == b1)
}

func cloneConversation(c *domainchat.Conversation) *domainchat.Conversation {
	out := *c
	return &out
}

func cloneMessage(m *domainchat.Message) *domainchat.Message {
	out := *m
	if m.ReadAt != nil {
		stamp := *m.ReadAt
		out.ReadAt = &stamp
	}
	return &out
}
