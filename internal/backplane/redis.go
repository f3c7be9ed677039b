package backplane

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBus fans events out across server processes through redis pub/sub.
// Redis pub/sub has no delivery guarantee beyond "live subscribers get it",
// which is exactly the contract Bus promises.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBus connects to redis and verifies the connection.
func NewRedisBus(ctx context.Context, addr, password string, logger *slog.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("redis backplane connected", "addr", addr)
	}
	return &RedisBus{client: client, logger: logger}, nil
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe consumes all chat channels until ctx is cancelled. Each
// subscriber gets its own redis subscription, so multiple gateways in one
// process (tests) behave like separate processes.
func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	sub := b.client.Subscribe(ctx, Channels()...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Channel, []byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

var _ Bus = (*RedisBus)(nil)
