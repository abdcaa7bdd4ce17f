package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castwire/castwire/internal/domain"
)

// ScheduleRepo implements domain.ScheduleRepository on PostgreSQL.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo creates the repository.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

const entryColumns = `id, owner_kind, owner_id, start_time, end_time, title, genre, category, tags, prerecorded_source`

// CreateEntry persists a new scheduled entry and returns it with its
// generated ID.
func (r *ScheduleRepo) CreateEntry(ctx context.Context, entry domain.ScheduledEntry) (domain.ScheduledEntry, error) {
	if !entry.StartTime.Before(entry.EndTime) {
		return domain.ScheduledEntry{}, fmt.Errorf("start time must be before end time")
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO scheduled_entries (owner_kind, owner_id, start_time, end_time, title, genre, category, tags, prerecorded_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+entryColumns,
		entry.Owner.Kind, entry.Owner.ID, entry.StartTime, entry.EndTime,
		entry.Metadata.Title, entry.Metadata.Genre, entry.Metadata.Category,
		entry.Metadata.Tags, entry.PrerecordedSource,
	)

	created, err := scanEntry(row)
	if err != nil {
		return domain.ScheduledEntry{}, fmt.Errorf("create scheduled entry: %w", err)
	}
	return created, nil
}

// DeleteEntry removes one entry by ID (owner administrative deletion).
func (r *ScheduleRepo) DeleteEntry(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scheduled_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled entry: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) FindEntriesInWindow(ctx context.Context, start, end time.Time) ([]domain.ScheduledEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM scheduled_entries
		WHERE start_time > $1 AND start_time <= $2
		ORDER BY start_time`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries in window: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (r *ScheduleRepo) FindActiveEntriesCrossingTime(ctx context.Context, now time.Time) ([]domain.ScheduledEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM scheduled_entries
		WHERE start_time <= $1 AND end_time > $1
		ORDER BY start_time`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("query active entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (r *ScheduleRepo) ApplySessionMetadata(ctx context.Context, owner domain.OwnerRef, md domain.SessionMetadata) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO channels (owner_kind, owner_id, title, genre, category, tags, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (owner_kind, owner_id) DO UPDATE SET
			title = EXCLUDED.title,
			genre = EXCLUDED.genre,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			updated_at = NOW()`,
		owner.Kind, owner.ID, md.Title, md.Genre, md.Category, md.Tags,
	)
	if err != nil {
		return fmt.Errorf("apply session metadata: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) ResetAllViewerCounters(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE channels
		SET viewer_count = 0, cumulative_view_count = 0, updated_at = NOW()
		WHERE viewer_count <> 0 OR cumulative_view_count <> 0`,
	)
	if err != nil {
		return 0, fmt.Errorf("reset viewer counters: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ScheduleRepo) DeleteExpiredEntries(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM scheduled_entries
		WHERE end_time < $1`,
		now.Add(-grace),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEntry(row pgx.Row) (domain.ScheduledEntry, error) {
	var e domain.ScheduledEntry
	err := row.Scan(
		&e.ID, &e.Owner.Kind, &e.Owner.ID, &e.StartTime, &e.EndTime,
		&e.Metadata.Title, &e.Metadata.Genre, &e.Metadata.Category,
		&e.Metadata.Tags, &e.PrerecordedSource,
	)
	return e, err
}

func scanEntries(rows pgx.Rows) ([]domain.ScheduledEntry, error) {
	var entries []domain.ScheduledEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
