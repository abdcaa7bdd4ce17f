// Package coordination tracks active worker processes in Redis. Each worker
// sends periodic heartbeats to a shared hash; workers without a heartbeat
// for longer than the stale threshold are considered gone.
package coordination

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/castwire/castwire/internal/logging"
)

const (
	workersKey     = "castwire:workers"
	staleThreshold = 60 * time.Second
)

// WorkerRegistry registers this worker and exposes the set of live workers.
type WorkerRegistry struct {
	rdb       *redis.Client
	clock     clockwork.Clock
	workerID  string
	heartbeat time.Duration
}

// WorkerInfo holds the registration record of one worker.
type WorkerInfo struct {
	WorkerID  string `json:"worker_id"`
	Timestamp int64  `json:"timestamp"`
}

// NewWorkerRegistry creates a registry for this worker. workerID must be
// unique per process; heartbeat is the re-registration interval.
func NewWorkerRegistry(rdb *redis.Client, clock clockwork.Clock, workerID string, heartbeat time.Duration) *WorkerRegistry {
	return &WorkerRegistry{
		rdb:       rdb,
		clock:     clock,
		workerID:  workerID,
		heartbeat: heartbeat,
	}
}

// Start registers immediately, then re-registers on the heartbeat interval.
// Blocks until ctx is cancelled, then unregisters and returns.
func (r *WorkerRegistry) Start(ctx context.Context) {
	r.register(ctx)

	ticker := r.clock.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.register(ctx)
		case <-ctx.Done():
			r.unregister()
			return
		}
	}
}

func (r *WorkerRegistry) register(ctx context.Context) {
	info := WorkerInfo{
		WorkerID:  r.workerID,
		Timestamp: r.clock.Now().Unix(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := r.rdb.HSet(ctx, workersKey, r.workerID, data).Err(); err != nil {
		logging.WithWorker(r.workerID).Warn("Worker heartbeat failed", "error", err)
	}
}

func (r *WorkerRegistry) unregister() {
	// Shutdown path; the parent context is already cancelled.
	r.rdb.HDel(context.Background(), workersKey, r.workerID)
}

// ActiveWorkers returns the IDs of workers with a recent heartbeat.
func (r *WorkerRegistry) ActiveWorkers(ctx context.Context) ([]string, error) {
	entries, err := r.rdb.HGetAll(ctx, workersKey).Result()
	if err != nil {
		return nil, err
	}

	active := []string{}
	now := r.clock.Now().Unix()

	for workerID, data := range entries {
		var info WorkerInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		if now-info.Timestamp < int64(staleThreshold/time.Second) {
			active = append(active, workerID)
		}
	}

	return active, nil
}
