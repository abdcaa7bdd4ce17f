package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/castwire/castwire/internal/app"
	"github.com/castwire/castwire/internal/bus"
	"github.com/castwire/castwire/internal/config"
	"github.com/castwire/castwire/internal/coordination"
	"github.com/castwire/castwire/internal/gateway"
	"github.com/castwire/castwire/internal/logging"
	"github.com/castwire/castwire/internal/media"
	"github.com/castwire/castwire/internal/postgres"
	"github.com/castwire/castwire/internal/reconciler"
	"github.com/castwire/castwire/internal/registry"
	"github.com/castwire/castwire/internal/relay"
	"github.com/castwire/castwire/internal/server"
)

const workerHeartbeat = 20 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		os.Exit(1)
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, rec *reconciler.Reconciler, eventBus *bus.Bus, cancel context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		rec.Stop()
		eventBus.Stop()
		cancel()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "worker_id", cfg.WorkerID)

	pool := setupDB(cfg)
	defer pool.Close()

	scheduleRepo := postgres.NewScheduleRepo(pool)

	sessionRegistry := registry.New(clock)
	eventBus := bus.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clustered deployments relay events over Redis; without REDIS_URL the
	// process runs standalone and the relay is a passthrough.
	var transport relay.Transport = relay.NoopTransport{}
	if cfg.RedisURL != "" {
		redisClient := setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()

		transport = relay.NewRedisTransport(redisClient)

		workers := coordination.NewWorkerRegistry(redisClient, clock, cfg.WorkerID, workerHeartbeat)
		go workers.Start(ctx)
	}

	eventRelay := relay.New(eventBus, transport, logging.NewReporter("relay"), cfg.WorkerID)
	go func() {
		if err := eventRelay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Relay stopped", "error", err)
		}
	}()

	appSvc := app.NewService(sessionRegistry, eventBus, scheduleRepo)

	// Stale persisted counters must be zeroed before any connection is
	// accepted.
	bootCtx, bootCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := appSvc.BootReset(bootCtx); err != nil {
		bootCancel()
		slog.Error("Boot-time counter reset failed", "error", err)
		os.Exit(1)
	}
	bootCancel()

	replayLauncher := media.NewCommandLauncher(cfg.ReplayCommand)
	rec := reconciler.New(
		scheduleRepo,
		sessionRegistry,
		replayLauncher,
		logging.NewReporter("reconciler"),
		clock,
		cfg.ReconcileInterval,
		cfg.ScheduleGraceTTL,
	)
	go rec.Start(ctx)

	gw := gateway.New(sessionRegistry, eventBus)
	srv := server.NewServer(cfg, appSvc, gw, scheduleRepo, clock)

	done := runGracefulShutdown(srv, rec, eventBus, cancel)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
