package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// RequirementRepo reads job requirements. CRUD is owned upstream; the
// core only ever reads.
type RequirementRepo struct{ Pool PgxPool }

// NewRequirementRepo constructs a RequirementRepo with the given pool.
func NewRequirementRepo(p PgxPool) *RequirementRepo { return &RequirementRepo{Pool: p} }

const requirementColumns = `id, title, description, required_skills, required_education,
	domain_requirements, min_years, max_years, active, created_at`

func scanRequirement(row pgx.Row) (domain.JobRequirement, error) {
	var j domain.JobRequirement
	err := row.Scan(&j.ID, &j.Title, &j.Description, &j.RequiredSkills, &j.RequiredEducation,
		&j.DomainRequirements, &j.MinYears, &j.MaxYears, &j.Active, &j.CreatedAt)
	return j, err
}

// Get loads a job requirement by id.
func (r *RequirementRepo) Get(ctx domain.Context, id string) (domain.JobRequirement, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+requirementColumns+` FROM job_requirements WHERE id=$1`, id)
	j, err := scanRequirement(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.JobRequirement{}, fmt.Errorf("op=requirement.get: %w", domain.ErrNotFound)
		}
		return domain.JobRequirement{}, fmt.Errorf("op=requirement.get: %w", err)
	}
	return j, nil
}

// ListActive lists active job requirements, newest first.
func (r *RequirementRepo) ListActive(ctx domain.Context) ([]domain.JobRequirement, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+requirementColumns+` FROM job_requirements WHERE active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("op=requirement.list_active: %w", err)
	}
	defer rows.Close()
	var out []domain.JobRequirement
	for rows.Next() {
		j, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("op=requirement.list_active: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=requirement.list_active: %w", err)
	}
	return out, nil
}
