// Package reconciler periodically compares persisted scheduled entries with
// wall-clock time and applies their metadata to sessions, live or not. It
// also restarts prerecorded replays from the correct elapsed offset after a
// process restart.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/castwire/castwire/internal/domain"
	apperrors "github.com/castwire/castwire/internal/errors"
	"github.com/castwire/castwire/internal/metrics"
	"github.com/castwire/castwire/internal/registry"
)

// Reconciler activates scheduled entries whose start time has arrived. Each
// entry in a batch is processed independently; failures are aggregated into
// one composite error and reported once, never retried automatically.
type Reconciler struct {
	schedules domain.ScheduleRepository
	registry  *registry.Registry
	media     domain.MediaController
	reporter  domain.ErrorReporter
	clock     clockwork.Clock
	interval  time.Duration
	graceTTL  time.Duration

	// lastTrigger is deliberately process-local. Losing it on restart
	// widens the first scan window to everything that should currently be
	// active, which is exactly the recovery we want after a crash.
	lastTrigger time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a reconciler. interval is the wall-clock scan period; graceTTL
// is how long consumed entries are retained past their end time.
func New(
	schedules domain.ScheduleRepository,
	reg *registry.Registry,
	media domain.MediaController,
	reporter domain.ErrorReporter,
	clock clockwork.Clock,
	interval time.Duration,
	graceTTL time.Duration,
) *Reconciler {
	return &Reconciler{
		schedules: schedules,
		registry:  reg,
		media:     media,
		reporter:  reporter,
		clock:     clock,
		interval:  interval,
		graceTTL:  graceTTL,
		stopCh:    make(chan struct{}),
	}
}

// Start runs one immediate pass, then scans on the interval until Stop is
// called or ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.runOnce(ctx)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.runOnce(ctx)
		case <-r.stopCh:
			slog.Info("Reconciler stopped")
			return
		case <-ctx.Done():
			slog.Info("Reconciler context cancelled")
			return
		}
	}
}

// Stop gracefully stops the scan loop.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

func (r *Reconciler) runOnce(ctx context.Context) {
	start := r.clock.Now()
	err := r.reconcile(ctx)
	metrics.ReconcileDurationSeconds.Observe(r.clock.Since(start).Seconds())

	if err == nil {
		metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
		return
	}

	var composite *apperrors.Composite
	if errors.As(err, &composite) {
		metrics.ReconcileRunsTotal.WithLabelValues("partial").Inc()
	} else {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
	}
	slog.Error("Reconciliation finished with failures", "error", err)
	if r.reporter != nil {
		r.reporter.Report(err)
	}
}

// reconcile processes one scan window. The returned error is either a
// listing failure (window not advanced, retried next pass) or a composite of
// independent per-entry failures (window advanced; no automatic retry).
func (r *Reconciler) reconcile(ctx context.Context) error {
	now := r.clock.Now()

	entries, err := r.listEntries(ctx, now)
	if err != nil {
		return apperrors.UnavailableError("scheduled entry scan failed", err)
	}

	var errs []error
	for _, entry := range entries {
		if err := r.apply(ctx, now, entry); err != nil {
			metrics.ReconcileEntriesTotal.WithLabelValues("failed").Inc()
			errs = append(errs, fmt.Errorf("entry %s: %w", entry.ID, err))
			continue
		}
		metrics.ReconcileEntriesTotal.WithLabelValues("applied").Inc()
	}

	if deleted, err := r.schedules.DeleteExpiredEntries(ctx, now, r.graceTTL); err != nil {
		errs = append(errs, fmt.Errorf("retention: %w", err))
	} else if deleted > 0 {
		slog.Debug("Expired scheduled entries deleted", "count", deleted)
	}

	r.lastTrigger = now
	return apperrors.NewComposite("reconcile", errs)
}

// listEntries picks the scan window. On the first pass after process start
// the window widens to every entry that should already be active, so a
// restart mid-stream reapplies metadata and resumes replays.
func (r *Reconciler) listEntries(ctx context.Context, now time.Time) ([]domain.ScheduledEntry, error) {
	if r.lastTrigger.IsZero() {
		slog.Info("First reconciliation after start, scanning active entries", "now", now)
		return r.schedules.FindActiveEntriesCrossingTime(ctx, now)
	}
	return r.schedules.FindEntriesInWindow(ctx, r.lastTrigger, now)
}

// apply pushes one entry's metadata to the live session if its owner is
// publishing, or pre-stages it on the owner record otherwise, and launches
// the prerecorded replay when the entry has one.
func (r *Reconciler) apply(ctx context.Context, now time.Time, entry domain.ScheduledEntry) error {
	sessionKey := entry.Owner.SessionKey()

	if r.registry.IsLive(sessionKey) {
		if err := r.registry.UpdateMetadata(sessionKey, entry.Metadata); err != nil {
			// Session ended between the check and the update; pre-stage
			// instead.
			if err := r.schedules.ApplySessionMetadata(ctx, entry.Owner, entry.Metadata); err != nil {
				return err
			}
		}
	} else {
		if err := r.schedules.ApplySessionMetadata(ctx, entry.Owner, entry.Metadata); err != nil {
			return err
		}
	}

	if entry.PrerecordedSource != "" {
		seek := now.Sub(entry.StartTime)
		if seek < 0 {
			seek = 0
		}
		if err := r.media.LaunchPrerecordedReplay(ctx, sessionKey, entry.PrerecordedSource, seek); err != nil {
			return fmt.Errorf("launch replay: %w", err)
		}
		slog.Info("Prerecorded replay launched",
			"session_key", sessionKey,
			"source", entry.PrerecordedSource,
			"seek_offset", seek)
	}

	return nil
}
