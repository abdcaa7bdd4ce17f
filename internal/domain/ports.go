package domain

import (
	"context"
	"time"
)

// ScheduleRepository is the persistence port for scheduled entries and
// owner-record session metadata.
type ScheduleRepository interface {
	// FindEntriesInWindow returns entries whose start time falls within
	// (start, end].
	FindEntriesInWindow(ctx context.Context, start, end time.Time) ([]ScheduledEntry, error)

	// FindActiveEntriesCrossingTime returns entries that should already be
	// live at now, i.e. startTime <= now < endTime.
	FindActiveEntriesCrossingTime(ctx context.Context, now time.Time) ([]ScheduledEntry, error)

	// ApplySessionMetadata stages metadata on the owner's record so it takes
	// effect when (or while) the owner's ingest is publishing.
	ApplySessionMetadata(ctx context.Context, owner OwnerRef, md SessionMetadata) error

	// ResetAllViewerCounters zeroes every persisted viewer counter. Called
	// once at process boot, before connections are accepted, because an
	// unclean shutdown can leave stale nonzero counts behind.
	ResetAllViewerCounters(ctx context.Context) (int64, error)

	// DeleteExpiredEntries removes entries whose end time plus the grace TTL
	// has elapsed. Returns the number of deleted entries.
	DeleteExpiredEntries(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
}

// MediaController launches external media processes. Launches are
// fire-and-forget; the caller never waits for replay completion.
type MediaController interface {
	LaunchPrerecordedReplay(ctx context.Context, sessionKey, sourceRef string, seekOffset time.Duration) error
}

// ErrorReporter receives errors that must not crash or abort the operation
// that produced them. Best-effort.
type ErrorReporter interface {
	Report(err error)
}
