package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"toytrade/internal/backplane"
	"toytrade/internal/chat"
	domainchat "toytrade/internal/domain/chat"
	"toytrade/internal/infra/security"
)

// Gateway is the connection manager: it authenticates handshakes, tracks
// presence and room membership for this process, dispatches inbound events,
// and replays backplane events into local rooms.
type Gateway struct {
	upgrader   websocket.Upgrader
	resolver   security.TokenResolver
	store      chat.Store
	dispatcher *chat.Dispatcher
	typing     *chat.TypingCoordinator
	presence   *chat.Presence
	rooms      *chat.Rooms
	bus        backplane.Bus
	logger     *slog.Logger
}

func NewGateway(
	resolver security.TokenResolver,
	store chat.Store,
	dispatcher *chat.Dispatcher,
	typing *chat.TypingCoordinator,
	presence *chat.Presence,
	rooms *chat.Rooms,
	bus backplane.Bus,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		resolver:   resolver,
		store:      store,
		dispatcher: dispatcher,
		typing:     typing,
		presence:   presence,
		rooms:      rooms,
		bus:        bus,
		logger:     logger,
	}
}

// Start subscribes the gateway to the backplane. Call once before serving
// connections.
func (g *Gateway) Start(ctx context.Context) error {
	return g.bus.Subscribe(ctx, g.route)
}

// HandleWS upgrades an authenticated HTTP request to a websocket session.
// The identity credential comes from the token query parameter or the
// Authorization header; without a resolvable identity the connection is
// refused before the upgrade, no retry.
func (g *Gateway) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = extractBearerToken(c.GetHeader("Authorization"))
	}
	userID, err := g.resolver.Resolve(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logWarn("websocket upgrade failed", "error", err)
		return
	}
	g.Attach(userID, conn)
}

// Attach registers a resolved identity's connection and starts its pumps.
// Split from HandleWS so transports (and tests) other than a live socket can
// feed the gateway.
func (g *Gateway) Attach(userID string, conn Conn) *Session {
	session := newSession(userID, conn)

	g.presence.Add(session)
	g.publishPresence(userID, true)
	g.joinExistingRooms(session)

	go session.writePump()
	go g.readPump(session)
	return session
}

func (g *Gateway) joinExistingRooms(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conversations, err := g.store.ConversationsForUser(ctx, s.UserID())
	if err != nil {
		g.logWarn("room preload failed", "user_id", s.UserID(), "error", err)
		return
	}
	for _, conv := range conversations {
		g.rooms.Join(conv.ID, s)
	}
}

func (g *Gateway) readPump(s *Session) {
	defer g.disconnect(s)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.Deliver(domainchat.EventError, gin.H{"message": "malformed event"})
			continue
		}
		g.handle(s, env)
	}
}

// disconnect runs the cleanup exactly once per connection, whatever ended it:
// explicit close, read error or abrupt transport failure all land here via
// the read pump.
func (g *Gateway) disconnect(s *Session) {
	s.close()
	g.rooms.LeaveAll(s)
	if g.presence.Remove(s) {
		// No typing:stop is synthesized on disconnect; stale indicators
		// expire client-side. Local timers are dropped so they cannot fire
		// for a dead connection.
		g.typing.Forget(s.UserID())
		g.publishPresence(s.UserID(), false)
	}
}

func (g *Gateway) handle(s *Session, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch env.Event {
	case domainchat.EventConversationJoin:
		var req struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil || req.ConversationID == "" {
			s.Deliver(domainchat.EventError, gin.H{"message": "conversationId is required"})
			return
		}
		conv, err := g.store.ConversationByID(ctx, req.ConversationID)
		if err != nil || !conv.HasParticipant(s.UserID()) {
			s.Deliver(domainchat.EventError, gin.H{"message": "conversation not found"})
			return
		}
		g.rooms.Join(conv.ID, s)

	case domainchat.EventMessageSend:
		var req struct {
			ConversationID string `json:"conversationId"`
			Content        string `json:"content"`
			Type           string `json:"type"`
			MediaURL       string `json:"mediaUrl"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil {
			s.Deliver(domainchat.EventError, gin.H{"message": "malformed payload"})
			return
		}
		_, err := g.dispatcher.Send(ctx, chat.SendCommand{
			ConversationID: req.ConversationID,
			SenderID:       s.UserID(),
			Content:        req.Content,
			Type:           domainchat.MessageType(req.Type),
			MediaURL:       req.MediaURL,
		})
		if err != nil {
			s.Deliver(domainchat.EventError, gin.H{"message": sendErrorMessage(err)})
		}

	case domainchat.EventMessageRead:
		var req struct {
			MessageID string `json:"messageId"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil || req.MessageID == "" {
			s.Deliver(domainchat.EventError, gin.H{"message": "messageId is required"})
			return
		}
		if _, err := g.dispatcher.MarkRead(ctx, req.MessageID, s.UserID()); err != nil {
			s.Deliver(domainchat.EventError, gin.H{"message": "message not found"})
		}

	case domainchat.EventMessagesRead:
		var req struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil || req.ConversationID == "" {
			s.Deliver(domainchat.EventError, gin.H{"message": "conversationId is required"})
			return
		}
		if err := g.dispatcher.MarkAllRead(ctx, req.ConversationID, s.UserID()); err != nil {
			s.Deliver(domainchat.EventError, gin.H{"message": "conversation not found"})
		}

	case domainchat.EventTypingStart, domainchat.EventTypingStop:
		var req struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil || req.ConversationID == "" {
			s.Deliver(domainchat.EventError, gin.H{"message": "conversationId is required"})
			return
		}
		if env.Event == domainchat.EventTypingStart {
			g.typing.Start(ctx, req.ConversationID, s.UserID())
		} else {
			g.typing.Stop(ctx, req.ConversationID, s.UserID())
		}

	default:
		s.Deliver(domainchat.EventError, gin.H{"message": "unknown event"})
	}
}

// route fans one backplane event out to this process's local subscribers.
func (g *Gateway) route(channel string, payload []byte) {
	switch channel {
	case backplane.MessageChannel:
		var event domainchat.MessageEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return
		}
		g.rooms.Broadcast(event.ConversationID, domainchat.EventMessageNew, event, "")

	case backplane.TypingChannel:
		var event domainchat.TypingEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return
		}
		name := domainchat.EventTypingStop
		if event.IsTyping {
			name = domainchat.EventTypingStart
		}
		g.rooms.Broadcast(event.ConversationID, name, event, event.UserID)

	case backplane.ReceiptChannel:
		var event domainchat.ReceiptEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return
		}
		if event.All {
			g.rooms.Broadcast(event.ConversationID, domainchat.EventMessagesRead, gin.H{
				"conversationId": event.ConversationID,
			}, "")
			return
		}
		g.rooms.Broadcast(event.ConversationID, domainchat.EventMessageRead, gin.H{
			"conversationId": event.ConversationID,
			"messageId":      event.MessageID,
			"readAt":         event.ReadAt,
		}, "")

	case backplane.ConversationChannel:
		var event domainchat.ConversationEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return
		}
		g.rooms.Broadcast(event.ConversationID, domainchat.EventConversationDeleted, gin.H{
			"conversationId": event.ConversationID,
		}, "")
		g.rooms.DropRoom(event.ConversationID)

	case backplane.PresenceChannel:
		var event domainchat.PresenceEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return
		}
		name := domainchat.EventUserOffline
		if event.Online {
			name = domainchat.EventUserOnline
		}
		for _, session := range g.presence.Sessions() {
			if session.UserID() == event.UserID {
				continue
			}
			session.Deliver(name, gin.H{"userId": event.UserID})
		}
	}
}

func (g *Gateway) publishPresence(userID string, online bool) {
	payload, err := json.Marshal(domainchat.PresenceEvent{UserID: userID, Online: online})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.bus.Publish(ctx, backplane.PresenceChannel, payload); err != nil {
		g.logWarn("presence broadcast failed", "user_id", userID, "error", err)
	}
}

func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, domainchat.ErrEmptyContent):
		return "content is required"
	case errors.Is(err, domainchat.ErrInvalidMessageType):
		return "invalid message type"
	default:
		return "conversation not found"
	}
}

func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func (g *Gateway) logWarn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}
