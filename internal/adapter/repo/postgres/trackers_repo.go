package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// TrackerRepo persists process trackers.
type TrackerRepo struct{ Pool PgxPool }

// NewTrackerRepo constructs a TrackerRepo with the given pool.
func NewTrackerRepo(p PgxPool) *TrackerRepo { return &TrackerRepo{Pool: p} }

const trackerColumns = `id, status, total_files, processed_files, failed_files,
	COALESCE(message,''), COALESCE(filename,''), COALESCE(correlation_id,''), job_id, created_at, updated_at`

// Create inserts a new tracker and returns its id.
func (r *TrackerRepo) Create(ctx domain.Context, t domain.ProcessTracker) (string, error) {
	tracer := otel.Tracer("repo.trackers")
	ctx, span := tracer.Start(ctx, "trackers.Create")
	defer span.End()
	id := t.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	q := `INSERT INTO process_trackers (id, status, total_files, processed_files, failed_files,
		message, filename, correlation_id, job_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.Pool.Exec(ctx, q, id, t.Status, t.TotalFiles, t.ProcessedFiles, t.FailedFiles,
		t.Message, t.Filename, t.CorrelationID, t.JobID, now, now)
	if err != nil {
		return "", fmt.Errorf("op=tracker.create: %w", err)
	}
	return id, nil
}

func scanTracker(row pgx.Row) (domain.ProcessTracker, error) {
	var t domain.ProcessTracker
	err := row.Scan(&t.ID, &t.Status, &t.TotalFiles, &t.ProcessedFiles, &t.FailedFiles,
		&t.Message, &t.Filename, &t.CorrelationID, &t.JobID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Get loads a tracker by id.
func (r *TrackerRepo) Get(ctx domain.Context, id string) (domain.ProcessTracker, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+trackerColumns+` FROM process_trackers WHERE id=$1`, id)
	t, err := scanTracker(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ProcessTracker{}, fmt.Errorf("op=tracker.get: %w", domain.ErrNotFound)
		}
		return domain.ProcessTracker{}, fmt.Errorf("op=tracker.get: %w", err)
	}
	return t, nil
}

// Update rewrites the mutable tracker fields.
func (r *TrackerRepo) Update(ctx domain.Context, t domain.ProcessTracker) error {
	tracer := otel.Tracer("repo.trackers")
	ctx, span := tracer.Start(ctx, "trackers.Update")
	defer span.End()
	q := `UPDATE process_trackers SET status=$2, total_files=$3, processed_files=$4,
		failed_files=$5, message=$6, job_id=$7, correlation_id=$8, updated_at=$9 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, t.ID, t.Status, t.TotalFiles, t.ProcessedFiles,
		t.FailedFiles, t.Message, t.JobID, t.CorrelationID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=tracker.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=tracker.update: %w", domain.ErrNotFound)
	}
	return nil
}

// MarkFileProcessed counts one processed file in SQL so concurrent
// workers never lose increments, completing the tracker when all files
// are accounted for. FAILED stays terminal.
func (r *TrackerRepo) MarkFileProcessed(ctx domain.Context, id string) (domain.ProcessTracker, error) {
	tracer := otel.Tracer("repo.trackers")
	ctx, span := tracer.Start(ctx, "trackers.MarkFileProcessed")
	defer span.End()
	q := `UPDATE process_trackers SET
		processed_files = processed_files + 1,
		status = CASE WHEN status <> $2 AND processed_files + 1 + failed_files >= total_files
			THEN $3 ELSE status END,
		updated_at = $4
		WHERE id=$1
		RETURNING ` + trackerColumns
	row := r.Pool.QueryRow(ctx, q, id, domain.TrackerFailed, domain.TrackerCompleted, time.Now().UTC())
	t, err := scanTracker(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ProcessTracker{}, fmt.Errorf("op=tracker.mark_processed: %w", domain.ErrNotFound)
		}
		return domain.ProcessTracker{}, fmt.Errorf("op=tracker.mark_processed: %w", err)
	}
	return t, nil
}

// MarkFileFailed counts one failed file and records the failure message.
// A COMPLETED tracker keeps its status.
func (r *TrackerRepo) MarkFileFailed(ctx domain.Context, id, message string) (domain.ProcessTracker, error) {
	tracer := otel.Tracer("repo.trackers")
	ctx, span := tracer.Start(ctx, "trackers.MarkFileFailed")
	defer span.End()
	q := `UPDATE process_trackers SET
		failed_files = failed_files + 1,
		status = CASE WHEN status = $2 THEN status ELSE $3 END,
		message = $4,
		updated_at = $5
		WHERE id=$1
		RETURNING ` + trackerColumns
	row := r.Pool.QueryRow(ctx, q, id, domain.TrackerCompleted, domain.TrackerFailed, message, time.Now().UTC())
	t, err := scanTracker(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ProcessTracker{}, fmt.Errorf("op=tracker.mark_failed: %w", domain.ErrNotFound)
		}
		return domain.ProcessTracker{}, fmt.Errorf("op=tracker.mark_failed: %w", err)
	}
	return t, nil
}

// Annotate sets the message only.
func (r *TrackerRepo) Annotate(ctx domain.Context, id, message string) error {
	tag, err := r.Pool.Exec(ctx, `UPDATE process_trackers SET message=$2, updated_at=$3 WHERE id=$1`,
		id, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=tracker.annotate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=tracker.annotate: %w", domain.ErrNotFound)
	}
	return nil
}

// RecentSince lists trackers created at or after the cutoff, newest first.
func (r *TrackerRepo) RecentSince(ctx domain.Context, since time.Time) ([]domain.ProcessTracker, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+trackerColumns+` FROM process_trackers WHERE created_at >= $1 ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("op=tracker.recent: %w", err)
	}
	defer rows.Close()
	var out []domain.ProcessTracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, fmt.Errorf("op=tracker.recent: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=tracker.recent: %w", err)
	}
	return out, nil
}
