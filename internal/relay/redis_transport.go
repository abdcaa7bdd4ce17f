package relay

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	eventsChannel = "castwire:events"
	commandBuffer = 256
)

// RedisTransport broadcasts envelopes over a Redis pub/sub channel shared by
// all workers.
type RedisTransport struct {
	rdb *redis.Client
}

// NewRedisTransport creates a transport on the shared events channel.
func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func (t *RedisTransport) Broadcast(ctx context.Context, data []byte) error {
	if err := t.rdb.Publish(ctx, eventsChannel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", eventsChannel, err)
	}
	return nil
}

func (t *RedisTransport) Receive(ctx context.Context) (<-chan []byte, error) {
	pubsub := t.rdb.Subscribe(ctx, eventsChannel)
	// Confirm the subscription before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", eventsChannel, err)
	}

	out := make(chan []byte, commandBuffer)
	msgCh := pubsub.Channel()

	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					// Drop under backpressure; delivery is at-most-once.
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
