package relay

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redistest "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/castwire/castwire/internal/bus"
	"github.com/castwire/castwire/internal/domain"
)

func setupTestRedis(t *testing.T) *goredis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := redistest.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(connStr)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err())

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisTransport_BroadcastReceive(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	receiver := NewRedisTransport(rdb)
	ch, err := receiver.Receive(ctx)
	require.NoError(t, err)

	sender := NewRedisTransport(rdb)
	require.NoError(t, sender.Broadcast(ctx, []byte(`{"hello":"world"}`)))

	select {
	case data := <-ch:
		assert.JSONEq(t, `{"hello":"world"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestRedisTransport_ReceiveStopsOnCancel(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	transport := NewRedisTransport(rdb)
	ch, err := transport.Receive(ctx)
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}

// TestTwoWorkersOverRedis wires two full bus+relay stacks through one Redis
// and checks that events cross between them exactly once.
func TestTwoWorkersOverRedis(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	busA := bus.New()
	t.Cleanup(busA.Stop)
	busB := bus.New()
	t.Cleanup(busB.Stop)

	relayA := New(busA, NewRedisTransport(rdb), nil, "worker-a")
	relayB := New(busB, NewRedisTransport(rdb), nil, "worker-b")
	go func() { _ = relayA.Start(ctx) }()
	go func() { _ = relayB.Start(ctx) }()

	// Let both subscriptions confirm before publishing.
	time.Sleep(200 * time.Millisecond)

	received := make(chan domain.Event, 8)
	sub := busB.Subscribe("abc", func(event domain.Event) {
		received <- event
	})
	t.Cleanup(sub.Close)

	busA.Publish(domain.SessionStarted{Key: "abc"})

	select {
	case event := <-received:
		assert.Equal(t, domain.KindSessionStarted, event.Kind())
		assert.Equal(t, "abc", event.SessionKey())
	case <-time.After(2 * time.Second):
		t.Fatal("event did not cross workers")
	}

	// No duplicate delivery of the same event.
	select {
	case event := <-received:
		t.Fatalf("unexpected extra event: %v", event)
	case <-time.After(300 * time.Millisecond):
	}
}
