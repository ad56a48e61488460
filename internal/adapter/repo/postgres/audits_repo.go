package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// AuditRepo persists match-run audits. The IN_PROGRESS row is written in
// the caller's transaction scope; terminal writes arrive asynchronously.
type AuditRepo struct{ Pool PgxPool }

// NewAuditRepo constructs an AuditRepo with the given pool.
func NewAuditRepo(p PgxPool) *AuditRepo { return &AuditRepo{Pool: p} }

const auditColumns = `id, job_id, job_title, status, candidates_matched, shortlisted,
	average_score, top_score, duration_ms, estimated_tokens, initiated_by, initiated_at,
	completed_at, COALESCE(error,''), COALESCE(summary,'')`

// Create inserts a new audit row and returns its id.
func (r *AuditRepo) Create(ctx domain.Context, a domain.MatchAudit) (string, error) {
	tracer := otel.Tracer("repo.audits")
	ctx, span := tracer.Start(ctx, "audits.Create")
	defer span.End()
	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO match_audits (id, job_id, job_title, status, candidates_matched, shortlisted,
		average_score, top_score, duration_ms, estimated_tokens, initiated_by, initiated_at)
		VALUES ($1,$2,$3,$4,0,0,0,0,0,0,$5,$6)`
	_, err := r.Pool.Exec(ctx, q, id, a.JobID, a.JobTitle, a.Status, a.InitiatedBy, a.InitiatedAt)
	if err != nil {
		return "", fmt.Errorf("op=audit.create: %w", err)
	}
	return id, nil
}

func scanAudit(row pgx.Row) (domain.MatchAudit, error) {
	var a domain.MatchAudit
	err := row.Scan(&a.ID, &a.JobID, &a.JobTitle, &a.Status, &a.CandidatesMatched, &a.Shortlisted,
		&a.AverageScore, &a.TopScore, &a.DurationMS, &a.EstimatedTokens, &a.InitiatedBy,
		&a.InitiatedAt, &a.CompletedAt, &a.Error, &a.Summary)
	return a, err
}

// Get loads an audit by id.
func (r *AuditRepo) Get(ctx domain.Context, id string) (domain.MatchAudit, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM match_audits WHERE id=$1`, id)
	a, err := scanAudit(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.MatchAudit{}, fmt.Errorf("op=audit.get: %w", domain.ErrNotFound)
		}
		return domain.MatchAudit{}, fmt.Errorf("op=audit.get: %w", err)
	}
	return a, nil
}

// Complete writes the terminal COMPLETED state with run totals.
func (r *AuditRepo) Complete(ctx domain.Context, a domain.MatchAudit) error {
	tracer := otel.Tracer("repo.audits")
	ctx, span := tracer.Start(ctx, "audits.Complete")
	defer span.End()
	q := `UPDATE match_audits SET status=$2, candidates_matched=$3, shortlisted=$4,
		average_score=$5, top_score=$6, duration_ms=$7, estimated_tokens=$8,
		summary=$9, completed_at=$10 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, a.ID, domain.AuditCompleted, a.CandidatesMatched, a.Shortlisted,
		a.AverageScore, a.TopScore, a.DurationMS, a.EstimatedTokens, a.Summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=audit.complete: %w", err)
	}
	return nil
}

// MarkFailed writes the terminal FAILED state with the error message.
func (r *AuditRepo) MarkFailed(ctx domain.Context, id, errMsg string, durationMS int64) error {
	q := `UPDATE match_audits SET status=$2, error=$3, duration_ms=$4, completed_at=$5 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, domain.AuditFailed, errMsg, durationMS, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=audit.mark_failed: %w", err)
	}
	return nil
}

// List pages audits, newest first.
func (r *AuditRepo) List(ctx domain.Context, p domain.Pager) ([]domain.MatchAudit, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + auditColumns + ` FROM match_audits ORDER BY initiated_at DESC LIMIT $1 OFFSET $2`
	return r.queryAudits(ctx, "audit.list", q, limit, p.Offset)
}

// ActiveRuns lists audits still IN_PROGRESS, oldest first.
func (r *AuditRepo) ActiveRuns(ctx domain.Context) ([]domain.MatchAudit, error) {
	q := `SELECT ` + auditColumns + ` FROM match_audits WHERE status=$1 ORDER BY initiated_at ASC`
	return r.queryAudits(ctx, "audit.active_runs", q, domain.AuditInProgress)
}

func (r *AuditRepo) queryAudits(ctx domain.Context, op, q string, args ...any) ([]domain.MatchAudit, error) {
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=%s: %w", op, err)
	}
	defer rows.Close()
	var out []domain.MatchAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("op=%s: %w", op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=%s: %w", op, err)
	}
	return out, nil
}
