package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "toytrade/internal/domain/chat"
	"toytrade/internal/infra/storage/memory"
)

func TestFindOrCreateConversationIsIdempotent(t *testing.T) {
	store := memory.NewChatStore()
	ctx := context.Background()

	first, created, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)

	// Same pair, opposite argument order: still the same conversation.
	second, created, err := store.FindOrCreateConversation(ctx, "listing-1", "bob", "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// A different listing between the same pair is a new conversation.
	third, created, err := store.FindOrCreateConversation(ctx, "listing-2", "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestMessagesPaginateInCreationOrder(t *testing.T) {
	store := memory.NewChatStore()
	ctx := context.Background()
	conv, _, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		_, err := store.AppendMessage(ctx, conv.ID, "alice", c, domainchat.MessageText, "")
		require.NoError(t, err)
	}

	page1, err := store.Messages(ctx, conv.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "one", page1[0].Content)
	assert.Equal(t, "two", page1[1].Content)
	assert.True(t, page1[0].CreatedAt.Before(page1[1].CreatedAt), "timestamps must be strictly increasing")

	page3, err := store.Messages(ctx, conv.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "five", page3[0].Content)

	beyond, err := store.Messages(ctx, conv.ID, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	last, err := store.LastMessage(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "five", last.Content)
}

func TestAppendMessageBumpsConversationActivity(t *testing.T) {
	store := memory.NewChatStore()
	ctx := context.Background()

	older, _, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	newer, _, err := store.FindOrCreateConversation(ctx, "listing-2", "alice", "carol")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, older.ID, "alice", "bump", domainchat.MessageText, "")
	require.NoError(t, err)

	convs, err := store.ConversationsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, older.ID, convs[0].ID, "most recently active conversation sorts first")
	assert.Equal(t, newer.ID, convs[1].ID)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	store := memory.NewChatStore()
	ctx := context.Background()
	conv, _, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)

	msg, err := store.AppendMessage(ctx, conv.ID, "alice", "hi", domainchat.MessageText, "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, conv.ID, "bob", "hey", domainchat.MessageText, "")
	require.NoError(t, err)

	unread, err := store.UnreadCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, unread, "own messages never count as unread")

	at := time.Now().UTC()
	read, changed, err := store.MarkRead(ctx, msg.ID, at)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, read.ReadAt)
	assert.True(t, read.ReadAt.Equal(at))

	_, changed, err = store.MarkRead(ctx, msg.ID, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed, "read timestamp is written once")

	unread, err = store.UnreadCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestMarkAllReadSkipsOwnMessages(t *testing.T) {
	store := memory.NewChatStore()
	ctx := context.Background()
	conv, _, err := store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := store.AppendMessage(ctx, conv.ID, "alice", "ping", domainchat.MessageText, "")
		require.NoError(t, err)
	}
	_, err = store.AppendMessage(ctx, conv.ID, "bob", "pong", domainchat.MessageText, "")
	require.NoError(t, err)

	count, err := store.MarkAllRead(ctx, conv.ID, "bob", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = store.MarkAllRead(ctx, conv.ID, "bob", time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, count)

	// Alice still has bob's message unread.
	unread, err := store.UnreadCount(ctx, conv.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestDeleteConversationCascades(t *testing.T) {
	store := memory.NewChatStore()
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
	_, err = store.Messages(ctx, conv.ID, 1, 10)
	assert.ErrorIs(t, err, domainchat.ErrConversationNotFound)

	assert.ErrorIs(t, store.DeleteConversation(ctx, conv.ID), domainchat.ErrConversationNotFound)
}
