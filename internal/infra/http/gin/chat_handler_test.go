package ginserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toytrade/internal/app/dto"
	"toytrade/internal/backplane"
	"toytrade/internal/chat"
	"toytrade/internal/domain/catalog"
	domainchat "toytrade/internal/domain/chat"
	"toytrade/internal/infra/config"
	ginserver "toytrade/internal/infra/http/gin"
	"toytrade/internal/infra/obs"
	"toytrade/internal/infra/security"
	"toytrade/internal/infra/storage/memory"
)

type apiRig struct {
	store    *memory.ChatStore
	listings *memory.ListingDirectory
	users    *memory.UserDirectory
	server   *http.Server
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()
	rig := &apiRig{
		store:    memory.NewChatStore(),
		listings: memory.NewListingDirectory(),
		users:    memory.NewUserDirectory(),
	}
	resolver := security.StaticResolver{
		"tok-alice": "alice",
		"tok-bob":   "bob",
		"tok-carol": "carol",
	}
	dispatcher := chat.NewDispatcher(rig.store, backplane.NewMemoryBus(), chat.NewPresence(), nil, nil)
	rig.server = ginserver.NewServer(
		config.Config{Env: "test", HTTPAddr: ":0"},
		obs.Middleware{},
		obs.HealthHandlers{Ready: func() error { return nil }},
		ginserver.Handlers{
			Chat: ginserver.ChatHandler{
				Store:      rig.store,
				Dispatcher: dispatcher,
				Listings:   rig.listings,
				Users:      rig.users,
			},
			AuthMiddleware: ginserver.AuthMiddleware{Resolver: resolver}.Handle,
		},
	)
	return rig
}

func (r *apiRig) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.server.Handler.ServeHTTP(w, req)
	return w
}

func (r *apiRig) seedListing(id, sellerID, title string) {
	r.listings.Put(catalog.ListingSummary{ID: id, Title: title, SellerID: sellerID, PriceCents: 1500})
}

func TestCreateConversationIsIdempotentAcrossRoles(t *testing.T) {
	rig := newAPIRig(t)
	rig.seedListing("listing-1", "bob", "Wooden train set")

	w := rig.do(t, http.MethodPost, "/api/v1/conversations", "tok-alice", `{"otherUserId":"bob","listingId":"listing-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first dto.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "alice", first.BuyerID, "the non-owner is the buyer")
	assert.Equal(t, "bob", first.SellerID)

	// The seller opening the same thread lands on the same conversation.
	w = rig.do(t, http.MethodPost, "/api/v1/conversations", "tok-bob", `{"otherUserId":"alice","listingId":"listing-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var second dto.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateConversationValidation(t *testing.T) {
	rig := newAPIRig(t)
	rig.seedListing("listing-1", "bob", "Puzzle")

	w := rig.do(t, http.MethodPost, "/api/v1/conversations", "tok-alice", `{"otherUserId":"","listingId":"listing-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = rig.do(t, http.MethodPost, "/api/v1/conversations", "tok-alice", `{"otherUserId":"alice","listingId":"listing-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "self-chat is rejected")

	w = rig.do(t, http.MethodPost, "/api/v1/conversations", "tok-alice", `{"otherUserId":"bob","listingId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = rig.do(t, http.MethodPost, "/api/v1/conversations", "", `{"otherUserId":"bob","listingId":"listing-1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListMyConversationsEnrichesAndOrders(t *testing.T) {
	rig := newAPIRig(t)
	rig.seedListing("listing-1", "bob", "Wooden train set")
	rig.seedListing("listing-2", "carol", "Toy kitchen")
	rig.users.Put(catalog.UserSummary{ID: "bob", Name: "Bob"})

	ctx := context.Background()
	older, _, err := rig.store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	newer, _, err := rig.store.FindOrCreateConversation(ctx, "listing-2", "alice", "carol")
	require.NoError(t, err)
	_, err = rig.store.AppendMessage(ctx, newer.ID, "carol", "still available", domainchat.MessageText, "")
	require.NoError(t, err)
	_, err = rig.store.AppendMessage(ctx, older.ID, "bob", "Hi", domainchat.MessageText, "")
	require.NoError(t, err)

	w := rig.do(t, http.MethodGet, "/api/v1/conversations", "tok-alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list dto.ConversationList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)

	top := list.Items[0]
	assert.Equal(t, older.ID, top.ID, "latest activity sorts first")
	require.NotNil(t, top.LastMessage)
	assert.Equal(t, "Hi", top.LastMessage.Content)
	assert.Equal(t, 1, top.UnreadCount)
	require.NotNil(t, top.Listing)
	assert.Equal(t, "Wooden train set", top.Listing.Title)
	require.NotNil(t, top.OtherUser)
	assert.Equal(t, "Bob", top.OtherUser.Name)

	assert.Equal(t, newer.ID, list.Items[1].ID)
}

func TestListMessagesHidesForeignConversations(t *testing.T) {
	rig := newAPIRig(t)
	ctx := context.Background()
	conv, _, err := rig.store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	_, err = rig.store.AppendMessage(ctx, conv.ID, "alice", "secret", domainchat.MessageText, "")
	require.NoError(t, err)

	w := rig.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "tok-carol", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "outsiders cannot tell the thread exists")

	w = rig.do(t, http.MethodGet, "/api/v1/conversations/nope/messages", "tok-alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListMessagesPaginatesAscending(t *testing.T) {
	rig := newAPIRig(t)
	ctx := context.Background()
	conv, _, err := rig.store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three"} {
		_, err := rig.store.AppendMessage(ctx, conv.ID, "alice", content, domainchat.MessageText, "")
		require.NoError(t, err)
	}

	w := rig.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages?page=2&limit=2", "tok-bob", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page dto.ChatMessageList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "three", page.Items[0].Content)

	// Garbage paging values fall back to defaults instead of erroring.
	w = rig.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages?page=zero&limit=-3", "tok-bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)
	assert.Len(t, page.Items, 3)
}

func TestListMessagesReflectsReadReceipts(t *testing.T) {
	rig := newAPIRig(t)
	ctx := context.Background()
	conv, _, err := rig.store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)
	_, err = rig.store.AppendMessage(ctx, conv.ID, "alice", "hello", domainchat.MessageText, "")
	require.NoError(t, err)

	count, err := rig.store.MarkAllRead(ctx, conv.ID, "bob", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	w := rig.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "tok-bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page dto.ChatMessageList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.NotNil(t, page.Items[0].ReadAt)

	w = rig.do(t, http.MethodGet, "/api/v1/conversations", "tok-bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.ConversationList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Zero(t, list.Items[0].UnreadCount)
}

func TestDeleteConversation(t *testing.T) {
	rig := newAPIRig(t)
	ctx := context.Background()
	conv, _, err := rig.store.FindOrCreateConversation(ctx, "listing-1", "alice", "bob")
	require.NoError(t, err)

	w := rig.do(t, http.MethodDelete, "/api/v1/conversations/"+conv.ID, "tok-carol", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "outsiders cannot delete")

	w = rig.do(t, http.MethodDelete, "/api/v1/conversations/"+conv.ID, "tok-alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	// Gone for the other participant too.
	w = rig.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "tok-bob", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	rig := newAPIRig(t)
	assert.Equal(t, http.StatusOK, rig.do(t, http.MethodGet, "/livez", "", "").Code)
	assert.Equal(t, http.StatusOK, rig.do(t, http.MethodGet, "/readyz", "", "").Code)
}
