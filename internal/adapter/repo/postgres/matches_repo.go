package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// MatchRepo upserts candidate matches keyed by (candidate_id, job_id).
type MatchRepo struct{ Pool PgxPool }

// NewMatchRepo constructs a MatchRepo with the given pool.
func NewMatchRepo(p PgxPool) *MatchRepo { return &MatchRepo{Pool: p} }

const matchColumns = `id, candidate_id, job_id, match_score, skills_score, experience_score,
	education_score, domain_score, COALESCE(explanation,''), is_shortlisted, is_selected,
	COALESCE(recruiter_note,''), created_at, updated_at`

// Upsert writes the scored fields; IsSelected and RecruiterNote survive
// re-scores (the conflict path does not touch them). Selected rows also
// keep their stored shortlist flag. Returns the stored row.
func (r *MatchRepo) Upsert(ctx domain.Context, m domain.CandidateMatch) (domain.CandidateMatch, error) {
	tracer := otel.Tracer("repo.matches")
	ctx, span := tracer.Start(ctx, "matches.Upsert")
	defer span.End()
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	q := `INSERT INTO candidate_matches (id, candidate_id, job_id, match_score, skills_score,
		experience_score, education_score, domain_score, explanation, is_shortlisted,
		is_selected, recruiter_note, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false,'',$11,$11)
		ON CONFLICT (candidate_id, job_id) DO UPDATE SET
			match_score=EXCLUDED.match_score,
			skills_score=EXCLUDED.skills_score,
			experience_score=EXCLUDED.experience_score,
			education_score=EXCLUDED.education_score,
			domain_score=EXCLUDED.domain_score,
			explanation=EXCLUDED.explanation,
			is_shortlisted=CASE WHEN candidate_matches.is_selected
				THEN candidate_matches.is_shortlisted
				ELSE (EXCLUDED.is_shortlisted OR candidate_matches.is_shortlisted) END,
			updated_at=EXCLUDED.updated_at
		RETURNING ` + matchColumns
	row := r.Pool.QueryRow(ctx, q, id, m.CandidateID, m.JobID, m.MatchScore, m.SkillsScore,
		m.ExperienceScore, m.EducationScore, m.DomainScore, m.Explanation, m.IsShortlisted, now)
	out, err := scanMatch(row)
	if err != nil {
		return domain.CandidateMatch{}, fmt.Errorf("op=match.upsert: %w", err)
	}
	return out, nil
}

func scanMatch(row pgx.Row) (domain.CandidateMatch, error) {
	var m domain.CandidateMatch
	err := row.Scan(&m.ID, &m.CandidateID, &m.JobID, &m.MatchScore, &m.SkillsScore,
		&m.ExperienceScore, &m.EducationScore, &m.DomainScore, &m.Explanation,
		&m.IsShortlisted, &m.IsSelected, &m.RecruiterNote, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// GetByCandidateAndJob loads the match for one (candidate, job) pair.
func (r *MatchRepo) GetByCandidateAndJob(ctx domain.Context, candidateID, jobID string) (domain.CandidateMatch, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM candidate_matches WHERE candidate_id=$1 AND job_id=$2`, candidateID, jobID)
	m, err := scanMatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.CandidateMatch{}, fmt.Errorf("op=match.get: %w", domain.ErrNotFound)
		}
		return domain.CandidateMatch{}, fmt.Errorf("op=match.get: %w", err)
	}
	return m, nil
}

// ListForJob lists matches for a job, best score first.
func (r *MatchRepo) ListForJob(ctx domain.Context, jobID string) ([]domain.CandidateMatch, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+matchColumns+` FROM candidate_matches WHERE job_id=$1 ORDER BY match_score DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("op=match.list_for_job: %w", err)
	}
	defer rows.Close()
	var out []domain.CandidateMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("op=match.list_for_job: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=match.list_for_job: %w", err)
	}
	return out, nil
}

// UpdateFlags sets shortlist/select flags and the recruiter note; nil
// arguments leave the field untouched.
func (r *MatchRepo) UpdateFlags(ctx domain.Context, id string, shortlisted, selected *bool, note *string) (domain.CandidateMatch, error) {
	tracer := otel.Tracer("repo.matches")
	ctx, span := tracer.Start(ctx, "matches.UpdateFlags")
	defer span.End()
	q := `UPDATE candidate_matches SET
		is_shortlisted = COALESCE($2, is_shortlisted),
		is_selected = COALESCE($3, is_selected),
		recruiter_note = COALESCE($4, recruiter_note),
		updated_at = $5
		WHERE id=$1
		RETURNING ` + matchColumns
	row := r.Pool.QueryRow(ctx, q, id, shortlisted, selected, note, time.Now().UTC())
	m, err := scanMatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.CandidateMatch{}, fmt.Errorf("op=match.update_flags: %w", domain.ErrNotFound)
		}
		return domain.CandidateMatch{}, fmt.Errorf("op=match.update_flags: %w", err)
	}
	return m, nil
}
