package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// QueueRepo implements domain.QueueRepository on PostgreSQL.
// Claim, Cancel, and ResetStale take FOR UPDATE SKIP LOCKED row locks so
// concurrent workers never observe overlapping PENDING rows.
type QueueRepo struct{ Pool PgxPool }

// NewQueueRepo constructs a QueueRepo with the given pool.
func NewQueueRepo(p PgxPool) *QueueRepo { return &QueueRepo{Pool: p} }

const jobColumns = `id, kind, status, priority, payload, metadata, correlation_id,
	retry_count, max_retries, scheduled_for, started_at, completed_at, heartbeat_at,
	COALESCE(claimed_by,''), COALESCE(error,''), result, created_at`

func scanJob(row pgx.Row) (domain.QueueJob, error) {
	var j domain.QueueJob
	var meta, result []byte
	if err := row.Scan(&j.ID, &j.Kind, &j.Status, &j.Priority, &j.Payload, &meta, &j.CorrelationID,
		&j.RetryCount, &j.MaxRetries, &j.ScheduledFor, &j.StartedAt, &j.CompletedAt, &j.HeartbeatAt,
		&j.ClaimedBy, &j.Error, &result, &j.CreatedAt); err != nil {
		return domain.QueueJob{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &j.Metadata)
	}
	if len(result) > 0 {
		_ = json.Unmarshal(result, &j.Result)
	}
	return j, nil
}

// Enqueue writes a PENDING row and returns its id.
func (r *QueueRepo) Enqueue(ctx domain.Context, j domain.QueueJob) (string, error) {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Enqueue")
	defer span.End()
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	meta, err := json.Marshal(j.Metadata)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	q := `INSERT INTO job_queue (id, kind, status, priority, payload, metadata, correlation_id,
		retry_count, max_retries, scheduled_for, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$9,$10)`
	_, err = r.Pool.Exec(ctx, q, id, j.Kind, domain.JobPending, j.Priority, j.Payload, meta,
		j.CorrelationID, j.MaxRetries, j.ScheduledFor, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	return id, nil
}

// Claim atomically selects up to batch claimable rows, moves them to
// PROCESSING stamped with workerID, and returns them. Rows whose
// scheduled_for lies in the future stay invisible.
func (r *QueueRepo) Claim(ctx domain.Context, kind string, batch int, workerID string) ([]domain.QueueJob, error) {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Claim")
	defer span.End()
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("op=queue.claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	q := `UPDATE job_queue SET status=$1, claimed_by=$2, started_at=$3, heartbeat_at=$3
		WHERE id IN (
			SELECT id FROM job_queue
			WHERE status=$4 AND kind=$5
			  AND (scheduled_for IS NULL OR scheduled_for <= $3)
			ORDER BY priority DESC, created_at ASC, id ASC
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	rows, err := tx.Query(ctx, q, domain.JobProcessing, workerID, now, domain.JobPending, kind, batch)
	if err != nil {
		return nil, fmt.Errorf("op=queue.claim: %w", err)
	}
	var jobs []domain.QueueJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("op=queue.claim: %w", err)
		}
		jobs = append(jobs, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=queue.claim: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("op=queue.claim: %w", err)
	}
	return jobs, nil
}

// Heartbeat stamps heartbeat_at=now while the row is still PROCESSING.
// Terminal rows are left untouched.
func (r *QueueRepo) Heartbeat(ctx domain.Context, id string) error {
	q := `UPDATE job_queue SET heartbeat_at=$2 WHERE id=$1 AND status=$3`
	if _, err := r.Pool.Exec(ctx, q, id, time.Now().UTC(), domain.JobProcessing); err != nil {
		return fmt.Errorf("op=queue.heartbeat: %w", err)
	}
	return nil
}

// Complete transitions PROCESSING -> COMPLETED with the result map stored
// opaquely. A no-op when the row already reached a terminal state, which
// is how a cancelled in-flight job is honoured.
func (r *QueueRepo) Complete(ctx domain.Context, id string, result map[string]any) error {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Complete")
	defer span.End()
	res, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("op=queue.complete: %w", err)
	}
	q := `UPDATE job_queue SET status=$2, result=$3, completed_at=$4 WHERE id=$1 AND status=$5`
	if _, err := r.Pool.Exec(ctx, q, id, domain.JobCompleted, res, time.Now().UTC(), domain.JobProcessing); err != nil {
		return fmt.Errorf("op=queue.complete: %w", err)
	}
	return nil
}

// Fail either re-enqueues the job for retry (visible again at
// scheduledFor) or marks it terminally FAILED when attempts ran out or
// the error was not retryable.
func (r *QueueRepo) Fail(ctx domain.Context, id, errMsg string, retryable bool, scheduledFor *time.Time) error {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Fail")
	defer span.End()
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=queue.fail: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT retry_count, max_retries, status FROM job_queue WHERE id=$1 FOR UPDATE`, id)
	var retryCount, maxRetries int
	var status domain.JobStatus
	if err := row.Scan(&retryCount, &maxRetries, &status); err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("op=queue.fail: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("op=queue.fail: %w", err)
	}
	if status.Terminal() {
		// Cancelled (or already finished) while in flight; keep terminal state.
		return tx.Commit(ctx)
	}

	now := time.Now().UTC()
	if retryable && retryCount < maxRetries {
		q := `UPDATE job_queue SET status=$2, retry_count=retry_count+1, error=$3,
			claimed_by=NULL, started_at=NULL, heartbeat_at=NULL, scheduled_for=$4
			WHERE id=$1`
		if _, err := tx.Exec(ctx, q, id, domain.JobPending, errMsg, scheduledFor); err != nil {
			return fmt.Errorf("op=queue.fail: %w", err)
		}
	} else {
		q := `UPDATE job_queue SET status=$2, error=$3, completed_at=$4 WHERE id=$1`
		if _, err := tx.Exec(ctx, q, id, domain.JobFailed, errMsg, now); err != nil {
			return fmt.Errorf("op=queue.fail: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=queue.fail: %w", err)
	}
	return nil
}

// Cancel moves a PENDING or PROCESSING row to CANCELLED. Returns false
// when the row was already terminal.
func (r *QueueRepo) Cancel(ctx domain.Context, id string) (bool, error) {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Cancel")
	defer span.End()
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("op=queue.cancel: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	row := tx.QueryRow(ctx, `SELECT status FROM job_queue WHERE id=$1 FOR UPDATE`, id)
	var status domain.JobStatus
	if err := row.Scan(&status); err != nil {
		if err == pgx.ErrNoRows {
			return false, fmt.Errorf("op=queue.cancel: %w", domain.ErrNotFound)
		}
		return false, fmt.Errorf("op=queue.cancel: %w", err)
	}
	if status.Terminal() {
		return false, tx.Commit(ctx)
	}
	q := `UPDATE job_queue SET status=$2, completed_at=$3 WHERE id=$1`
	if _, err := tx.Exec(ctx, q, id, domain.JobCancelled, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("op=queue.cancel: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("op=queue.cancel: %w", err)
	}
	return true, nil
}

// ResetStale recovers PROCESSING rows whose heartbeat predates the
// threshold: back to PENDING while retries remain, terminally FAILED
// otherwise. Returns the number of rows touched.
func (r *QueueRepo) ResetStale(ctx domain.Context, threshold time.Duration) (int, error) {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.ResetStale")
	defer span.End()
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("op=queue.reset_stale: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	cutoff := now.Add(-threshold)
	rows, err := tx.Query(ctx, `SELECT id, retry_count, max_retries FROM job_queue
		WHERE status=$1 AND heartbeat_at < $2 FOR UPDATE SKIP LOCKED`, domain.JobProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=queue.reset_stale: %w", err)
	}
	type stale struct {
		id         string
		retryCount int
		maxRetries int
	}
	var stales []stale
	for rows.Next() {
		var s stale
		if err := rows.Scan(&s.id, &s.retryCount, &s.maxRetries); err != nil {
			rows.Close()
			return 0, fmt.Errorf("op=queue.reset_stale: %w", err)
		}
		stales = append(stales, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("op=queue.reset_stale: %w", err)
	}

	for _, s := range stales {
		if s.retryCount < s.maxRetries {
			q := `UPDATE job_queue SET status=$2, retry_count=retry_count+1, error=$3,
				claimed_by=NULL, started_at=NULL, heartbeat_at=NULL WHERE id=$1`
			if _, err := tx.Exec(ctx, q, s.id, domain.JobPending, "stale: heartbeat expired, reclaimed"); err != nil {
				return 0, fmt.Errorf("op=queue.reset_stale: %w", err)
			}
		} else {
			q := `UPDATE job_queue SET status=$2, error=$3, completed_at=$4 WHERE id=$1`
			if _, err := tx.Exec(ctx, q, s.id, domain.JobFailed, "stale: heartbeat expired, retries exhausted", now); err != nil {
				return 0, fmt.Errorf("op=queue.reset_stale: %w", err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=queue.reset_stale: %w", err)
	}
	return len(stales), nil
}

// Get loads a job by id.
func (r *QueueRepo) Get(ctx domain.Context, id string) (domain.QueueJob, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM job_queue WHERE id=$1`, id)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.QueueJob{}, fmt.Errorf("op=queue.get: %w", domain.ErrNotFound)
		}
		return domain.QueueJob{}, fmt.Errorf("op=queue.get: %w", err)
	}
	return j, nil
}

// ByCorrelation lists jobs sharing a correlation id, oldest first.
func (r *QueueRepo) ByCorrelation(ctx domain.Context, correlationID string) ([]domain.QueueJob, error) {
	q := `SELECT ` + jobColumns + ` FROM job_queue WHERE correlation_id=$1 ORDER BY created_at ASC`
	return r.queryJobs(ctx, "queue.by_correlation", q, correlationID)
}

// ByStatus pages jobs in one status, oldest first.
func (r *QueueRepo) ByStatus(ctx domain.Context, status domain.JobStatus, p domain.Pager) ([]domain.QueueJob, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + jobColumns + ` FROM job_queue WHERE status=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	return r.queryJobs(ctx, "queue.by_status", q, status, limit, p.Offset)
}

func (r *QueueRepo) queryJobs(ctx domain.Context, op, q string, args ...any) ([]domain.QueueJob, error) {
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=%s: %w", op, err)
	}
	defer rows.Close()
	var jobs []domain.QueueJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=%s: %w", op, err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=%s: %w", op, err)
	}
	return jobs, nil
}

// QueueDepth counts claimable PENDING rows of a kind.
func (r *QueueRepo) QueueDepth(ctx domain.Context, kind string) (int64, error) {
	q := `SELECT COUNT(*) FROM job_queue WHERE status=$1 AND kind=$2
		AND (scheduled_for IS NULL OR scheduled_for <= $3)`
	var n int64
	if err := r.Pool.QueryRow(ctx, q, domain.JobPending, kind, time.Now().UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=queue.depth: %w", err)
	}
	return n, nil
}

// CountByStatus counts rows in a status across kinds.
func (r *QueueRepo) CountByStatus(ctx domain.Context, status domain.JobStatus) (int64, error) {
	var n int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM job_queue WHERE status=$1`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=queue.count_by_status: %w", err)
	}
	return n, nil
}

// AverageProcessingSeconds reports the mean completed_at-started_at for
// COMPLETED jobs of a kind.
func (r *QueueRepo) AverageProcessingSeconds(ctx domain.Context, kind string) (float64, error) {
	q := `SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at))), 0)
		FROM job_queue WHERE kind=$1 AND status=$2 AND started_at IS NOT NULL AND completed_at IS NOT NULL`
	var avg float64
	if err := r.Pool.QueryRow(ctx, q, kind, domain.JobCompleted).Scan(&avg); err != nil {
		return 0, fmt.Errorf("op=queue.avg_processing: %w", err)
	}
	return avg, nil
}

// StatsByKind aggregates per-status counters for a kind.
func (r *QueueRepo) StatsByKind(ctx domain.Context, kind string) (domain.QueueStats, error) {
	q := `SELECT
		COUNT(*) FILTER (WHERE status='PENDING'),
		COUNT(*) FILTER (WHERE status='PROCESSING'),
		COUNT(*) FILTER (WHERE status='COMPLETED'),
		COUNT(*) FILTER (WHERE status='FAILED'),
		COUNT(*) FILTER (WHERE status='CANCELLED')
		FROM job_queue WHERE kind=$1`
	s := domain.QueueStats{Kind: kind}
	if err := r.Pool.QueryRow(ctx, q, kind).Scan(&s.Pending, &s.Processing, &s.Completed, &s.Failed, &s.Cancelled); err != nil {
		return domain.QueueStats{}, fmt.Errorf("op=queue.stats: %w", err)
	}
	return s, nil
}

// DeleteCompletedOlderThan prunes terminal rows older than the retention
// window. Returns the number of rows removed.
func (r *QueueRepo) DeleteCompletedOlderThan(ctx domain.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	q := `DELETE FROM job_queue WHERE status IN ('COMPLETED','FAILED','CANCELLED') AND completed_at < $1`
	tag, err := r.Pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=queue.delete_completed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindForRetry lists FAILED rows of a kind that still have attempts left.
func (r *QueueRepo) FindForRetry(ctx domain.Context, kind string, limit int) ([]domain.QueueJob, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + jobColumns + ` FROM job_queue
		WHERE kind=$1 AND status=$2 AND retry_count < max_retries
		ORDER BY created_at ASC LIMIT $3`
	return r.queryJobs(ctx, "queue.find_for_retry", q, kind, domain.JobFailed, limit)
}
