package coordination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redistest "github.com/testcontainers/testcontainers-go/modules/redis"
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
	require.NoError(t, client.FlushAll(ctx).Err())

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWorkerRegistration(t *testing.T) {
	rdb := setupTestRedis(t)
	clock := clockwork.NewRealClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewWorkerRegistry(rdb, clock, "worker-1", 100*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		registry.Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		active, err := registry.ActiveWorkers(context.Background())
		return err == nil && len(active) == 1
	}, 2*time.Second, 20*time.Millisecond)

	active, err := registry.ActiveWorkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"worker-1"}, active)

	// Cancellation unregisters the worker.
	cancel()
	wg.Wait()

	active, err = registry.ActiveWorkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMultipleWorkers(t *testing.T) {
	rdb := setupTestRedis(t)
	clock := clockwork.NewRealClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	ids := []string{"worker-a", "worker-b", "worker-c"}
	registries := make([]*WorkerRegistry, len(ids))

	for i, id := range ids {
		registries[i] = NewWorkerRegistry(rdb, clock, id, 100*time.Millisecond)
		wg.Add(1)
		go func(r *WorkerRegistry) {
			defer wg.Done()
			r.Start(ctx)
		}(registries[i])
	}

	assert.Eventually(t, func() bool {
		active, err := registries[0].ActiveWorkers(context.Background())
		return err == nil && len(active) == 3
	}, 2*time.Second, 20*time.Millisecond)

	active, err := registries[0].ActiveWorkers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, active)

	cancel()
	wg.Wait()
}

func TestStaleWorkersExcluded(t *testing.T) {
	rdb := setupTestRedis(t)
	clock := clockwork.NewFakeClock()
	ctx := context.Background()

	registry := NewWorkerRegistry(rdb, clock, "worker-1", time.Minute)
	registry.register(ctx)

	active, err := registry.ActiveWorkers(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// A worker that stops heartbeating falls out after the stale threshold.
	clock.Advance(staleThreshold + time.Second)

	active, err = registry.ActiveWorkers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
