package mongo

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "toytrade/internal/domain/chat"
)

// ChatStore is the durable persistence gateway backed by mongo. A unique
// index on (listing_id, participants) makes find-or-create race-safe across
// processes.
type ChatStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	logger        *slog.Logger

	mu      sync.Mutex
	lastSeq int64
}

func NewChatStore(db *mongo.Database, logger *slog.Logger) (*ChatStore, error) {
	store := &ChatStore{
		conversations: db.Collection("chat_conversations"),
		messages:      db.Collection("chat_messages"),
		logger:        logger,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := store.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "listing_id", Value: 1}, {Key: "participants", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	_, err = store.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (s *ChatStore) FindOrCreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (*domainchat.Conversation, bool, error) {
	filter := bson.M{"listing_id": listingID, "participants": participantsKey(buyerID, sellerID)}

	var doc conversationDocument
	err := s.conversations.FindOne(ctx, filter).Decode(&doc)
	if err == nil {
		return doc.toEntity(), false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	now := time.Now().UTC()
	doc = conversationDocument{
		ID:           uuid.NewString(),
		ListingID:    listingID,
		BuyerID:      buyerID,
		SellerID:     sellerID,
		Participants: participantsKey(buyerID, sellerID),
		CreatedAt:    now.UnixMilli(),
		UpdatedAt:    now.UnixMilli(),
	}
	if _, err := s.conversations.InsertOne(ctx, doc); err != nil {
		// Lost the race to another process; the unique index guarantees the
		// winner holds the conversation we want.
		if mongo.IsDuplicateKeyError(err) {
			var existing conversationDocument
			if err := s.conversations.FindOne(ctx, filter).Decode(&existing); err != nil {
				return nil, false, err
			}
			return existing.toEntity(), false, nil
		}
		return nil, false, err
	}
	return doc.toEntity(), true, nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id string) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (s *ChatStore) ConversationsForUser(ctx context.Context, userID string) ([]*domainchat.Conversation, error) {
	filter := bson.M{"participants": userID}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := make([]*domainchat.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toEntity())
	}
	return out, cursor.Err()
}

func (s *ChatStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.conversations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainchat.ErrConversationNotFound
	}
	_, err = s.messages.DeleteMany(ctx, bson.M{"conversation_id": id})
	return err
}

func (s *ChatStore) AppendMessage(ctx context.Context, conversationID, senderID, content string, msgType domainchat.MessageType, mediaURL string) (*domainchat.Message, error) {
	now := time.Now().UTC()
	doc := messageDocument{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           string(msgType),
		MediaURL:       mediaURL,
		CreatedAt:      now.UnixMilli(),
		Seq:            s.nextSeq(now),
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	// The message is durable at this point. Concurrent appends race on
	// updated_at (last write wins), and a failed bump only skews inbox
	// ordering until the next write, so it never fails the send.
	if _, err := s.conversations.UpdateByID(ctx, conversationID, bson.M{"$set": bson.M{"updated_at": now.UnixMilli()}}); err != nil {
		s.logWarn("conversation activity bump failed", "conversation_id", conversationID, "error", err)
	}
	return doc.toEntity(), nil
}

// nextSeq hands out a strictly increasing nanosecond stamp so messages
// persisted in the same millisecond still page back in persistence order.
func (s *ChatStore) nextSeq(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := now.UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

func (s *ChatStore) MessageByID(ctx context.Context, id string) (*domainchat.Message, error) {
	var doc messageDocument
	if err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrMessageNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (s *ChatStore) Messages(ctx context.Context, conversationID string, page, limit int) ([]domainchat.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if _, err := s.ConversationByID(ctx, conversationID); err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := make([]domainchat.Message, 0, limit)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.toEntity())
	}
	return out, cursor.Err()
}

func (s *ChatStore) LastMessage(ctx context.Context, conversationID string) (*domainchat.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	var doc messageDocument
	if err := s.messages.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrMessageNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (s *ChatStore) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": userID},
		"read_at":         nil,
	}
	count, err := s.messages.CountDocuments(ctx, filter)
	return int(count), err
}

func (s *ChatStore) MarkRead(ctx context.Context, messageID string, at time.Time) (*domainchat.Message, bool, error) {
	res, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": messageID, "read_at": nil},
		bson.M{"$set": bson.M{"read_at": at.UnixMilli()}},
	)
	if err != nil {
		return nil, false, err
	}
	msg, err := s.MessageByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	return msg, res.ModifiedCount > 0, nil
}

func (s *ChatStore) MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error) {
	res, err := s.messages.UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"sender_id":       bson.M{"$ne": readerID},
			"read_at":         nil,
		},
		bson.M{"$set": bson.M{"read_at": at.UnixMilli()}},
	)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

// participantsKey stores the pair sorted so lookups match regardless of
// argument order.
func participantsKey(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

type conversationDocument struct {
	ID           string   `bson:"_id"`
	ListingID    string   `bson:"listing_id"`
	BuyerID      string   `bson:"buyer_id"`
	SellerID     string   `bson:"seller_id"`
	Participants []string `bson:"participants"`
	CreatedAt    int64    `bson:"created_at"`
	UpdatedAt    int64    `bson:"updated_at"`
}

func (d conversationDocument) toEntity() *domainchat.Conversation {
	return &domainchat.Conversation{
		ID:        d.ID,
		ListingID: d.ListingID,
		BuyerID:   d.BuyerID,
		SellerID:  d.SellerID,
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	SenderID       string `bson:"sender_id"`
	Content        string `bson:"content"`
	Type           string `bson:"type"`
	MediaURL       string `bson:"media_url,omitempty"`
	CreatedAt      int64  `bson:"created_at"`
	Seq            int64  `bson:"seq"`
	ReadAt         *int64 `bson:"read_at,omitempty"`
}

func (d messageDocument) toEntity() *domainchat.Message {
	msg := &domainchat.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		Type:           domainchat.MessageType(d.Type),
		MediaURL:       d.MediaURL,
		CreatedAt:      timestampToTime(d.CreatedAt),
	}
	if d.ReadAt != nil {
		readAt := timestampToTime(*d.ReadAt)
		msg.ReadAt = &readAt
	}
	return msg
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (s *ChatStore) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
