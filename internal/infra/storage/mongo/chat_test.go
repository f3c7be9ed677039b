package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "toytrade/internal/domain/chat"
	mongostore "toytrade/internal/infra/storage/mongo"
)

// These tests need a reachable mongod; set MONGO_TEST_URI to run them. Each
// test gets a throwaway database dropped on cleanup.
func newTestStore(t *testing.T) *mongostore.ChatStore {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	client, err := mongostore.New(uri, "toytrade_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.DB.Drop(ctx)
		_ = client.Close(ctx)
	})
	store, err := mongostore.NewChatStore(client.DB, nil)
	require.NoError(t, err)
	return store
}

func TestFindOrCreateConversationMatchesEitherOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, created, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := store.FindOrCreateConversation(ctx, "listing-1", "bob", "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestMessagesPageInPersistenceOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	conv, _, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)

	// Tight loop so several messages land within the same millisecond.
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		msg, err := store.AppendMessage(ctx, conv.ID, "alice", fmt.Sprintf("m%02d", i), domainchat.MessageText, "")
		require.NoError(t, err)
		require.NotNil(t, msg)
		ids = append(ids, msg.ID)
	}

	got, err := store.Messages(ctx, conv.ID, 1, 100)
	require.NoError(t, err)
	require.Len(t, got, len(ids))
	for i := range ids {
		assert.Equal(t, ids[i], got[i].ID, "page order must match persistence order")
	}

	last, err := store.LastMessage(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[len(ids)-1], last.ID)
}

func TestMarkReadAndUnreadCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	conv, _, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	msg, err := store.AppendMessage(ctx, conv.ID, "alice", "hi", domainchat.MessageText, "")
	require.NoError(t, err)

	unread, err := store.UnreadCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	_, changed, err := store.MarkRead(ctx, msg.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)

	_, changed, err = store.MarkRead(ctx, msg.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, changed)

	unread, err = store.UnreadCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestDeleteConversationCascadesToMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	conv, _, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	msg, err := store.AppendMessage(ctx, conv.ID, "alice", "bye", domainchat.MessageText, "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteConversation(ctx, conv.ID))
	_, err = store.ConversationByID(ctx, conv.ID)
	assert.ErrorIs(t, err, domainchat.ErrConversationNotFound)
	_, err = store.MessageByID(ctx, msg.ID)
	assert.ErrorIs(t, err, domainchat.ErrMessageNotFound)
}
