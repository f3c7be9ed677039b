package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"toytrade/internal/backplane"
	domainchat "toytrade/internal/domain/chat"
)

// DefaultTypingTimeout is how long a typing indicator stays alive without a
// fresh typing-start before the coordinator synthesizes a stop.
const DefaultTypingTimeout = 3 * time.Second

type typingKey struct {
	conversationID string
	userID         string
}

// TypingCoordinator runs the idle -> typing -> idle state machine per
// (conversation, user) pair. State is a single debounce timer, never
// persisted. Repeated typing-start inside the window re-arms the timer
// without re-broadcasting.
type TypingCoordinator struct {
	bus     backplane.Bus
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	timers map[typingKey]*time.Timer
}

func NewTypingCoordinator(bus backplane.Bus, timeout time.Duration, logger *slog.Logger) *TypingCoordinator {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingCoordinator{
		bus:     bus,
		timeout: timeout,
		logger:  logger,
		timers:  make(map[typingKey]*time.Timer),
	}
}

// Start transitions the pair to typing. Broadcasts once per distinct
// interaction; a start while already typing only pushes the deadline out.
func (t *TypingCoordinator) Start(ctx context.Context, conversationID, userID string) {
	key := typingKey{conversationID, userID}
	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.timeout)
		t.mu.Unlock()
		return
	}
	t.timers[key] = time.AfterFunc(t.timeout, func() { t.expire(key) })
	t.mu.Unlock()

	t.broadcast(ctx, conversationID, userID, true)
}

// Stop transitions the pair back to idle on an explicit client stop. A stop
// without a preceding start is ignored.
func (t *TypingCoordinator) Stop(ctx context.Context, conversationID, userID string) {
	key := typingKey{conversationID, userID}
	t.mu.Lock()
	timer, ok := t.timers[key]
	if ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.broadcast(ctx, conversationID, userID, false)
}

// Forget drops all of a user's typing timers without broadcasting, used on
// disconnect. Recipients expire stale typing indicators client-side; the
// server sends no implicit stop.
func (t *TypingCoordinator) Forget(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.timers {
		if key.userID == userID {
			timer.Stop()
			delete(t.timers, key)
		}
	}
}

// expire fires when the window elapses with no further typing-start and
// synthesizes a stop exactly as if the client had sent one.
func (t *TypingCoordinator) expire(key typingKey) {
	t.mu.Lock()
	_, ok := t.timers[key]
	if ok {
		delete(t.timers, key)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.broadcast(context.Background(), key.conversationID, key.userID, false)
}

func (t *TypingCoordinator) broadcast(ctx context.Context, conversationID, userID string, isTyping bool) {
	payload, err := json.Marshal(domainchat.TypingEvent{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	})
	if err != nil {
		return
	}
	if err := t.bus.Publish(ctx, backplane.TypingChannel, payload); err != nil && t.logger != nil {
		t.logger.Warn("typing broadcast failed", "conversation_id", conversationID, "user_id", userID, "error", err)
	}
}
