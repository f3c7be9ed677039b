package backplane

import (
	"context"
	"sync"
)

// Logical channels. Ordering is only meaningful within a channel, and even
// there the bus is best-effort: durability and ordering come from the store,
// not from the fan-out.
const (
	MessageChannel      = "chat.messages"
	TypingChannel       = "chat.typing"
	ReceiptChannel      = "chat.receipts"
	PresenceChannel     = "chat.presence"
	ConversationChannel = "chat.conversations"
)

// Channels lists every channel a chat process subscribes to.
func Channels() []string {
	return []string{MessageChannel, TypingChannel, ReceiptChannel, PresenceChannel, ConversationChannel}
}

// Handler receives one published payload from one channel.
type Handler func(channel string, payload []byte)

// Bus is the cross-process broadcast seam. Publish is fire-and-forget: a nil
// error means the event was handed to the transport, not that anyone received
// it. Subscribe delivers at-least-once to every live subscriber, including
// the publishing process.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// MemoryBus is an in-process Bus for tests and single-node runs. Every
// subscriber sees every publish, the publisher's own process included, which
// matches the redis behaviour the production bus relies on.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   []Handler
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	data := append([]byte(nil), payload...)
	for _, h := range b.subs {
		h(channel, data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.subs = append(b.subs, handler)
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
	return nil
}

var _ Bus = (*MemoryBus)(nil)
