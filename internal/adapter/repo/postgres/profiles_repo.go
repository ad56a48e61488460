package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// ProfileRepo upserts external profiles keyed by (candidate_id, source).
// The unique index serialises concurrent enrich calls for one pair.
type ProfileRepo struct{ Pool PgxPool }

// NewProfileRepo constructs a ProfileRepo with the given pool.
func NewProfileRepo(p PgxPool) *ProfileRepo { return &ProfileRepo{Pool: p} }

const profileColumns = `id, candidate_id, source, status, COALESCE(profile_url,''),
	COALESCE(display_name,''), COALESCE(bio,''), COALESCE(company,''), COALESCE(location,''),
	public_repos, followers, COALESCE(repo_summary,''), COALESCE(enriched_summary,''),
	last_fetched_at, COALESCE(error,''), created_at, updated_at`

// Upsert writes the full profile row and returns the stored version.
func (r *ProfileRepo) Upsert(ctx domain.Context, p domain.ExternalProfile) (domain.ExternalProfile, error) {
	tracer := otel.Tracer("repo.profiles")
	ctx, span := tracer.Start(ctx, "profiles.Upsert")
	defer span.End()
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	q := `INSERT INTO candidate_external_profiles (id, candidate_id, source, status, profile_url,
		display_name, bio, company, location, public_repos, followers, repo_summary,
		enriched_summary, last_fetched_at, error, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
		ON CONFLICT (candidate_id, source) DO UPDATE SET
			status=EXCLUDED.status,
			profile_url=EXCLUDED.profile_url,
			display_name=EXCLUDED.display_name,
			bio=EXCLUDED.bio,
			company=EXCLUDED.company,
			location=EXCLUDED.location,
			public_repos=EXCLUDED.public_repos,
			followers=EXCLUDED.followers,
			repo_summary=EXCLUDED.repo_summary,
			enriched_summary=EXCLUDED.enriched_summary,
			last_fetched_at=EXCLUDED.last_fetched_at,
			error=EXCLUDED.error,
			updated_at=EXCLUDED.updated_at
		RETURNING ` + profileColumns
	row := r.Pool.QueryRow(ctx, q, id, p.CandidateID, p.Source, p.Status, p.ProfileURL,
		p.DisplayName, p.Bio, p.Company, p.Location, p.PublicRepos, p.Followers,
		p.RepoSummary, p.EnrichedSummary, p.LastFetchedAt, p.Error, now)
	out, err := scanProfile(row)
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("op=profile.upsert: %w", err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (domain.ExternalProfile, error) {
	var p domain.ExternalProfile
	err := row.Scan(&p.ID, &p.CandidateID, &p.Source, &p.Status, &p.ProfileURL,
		&p.DisplayName, &p.Bio, &p.Company, &p.Location, &p.PublicRepos, &p.Followers,
		&p.RepoSummary, &p.EnrichedSummary, &p.LastFetchedAt, &p.Error, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Get loads a profile by id.
func (r *ProfileRepo) Get(ctx domain.Context, id string) (domain.ExternalProfile, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM candidate_external_profiles WHERE id=$1`, id)
	p, err := scanProfile(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ExternalProfile{}, fmt.Errorf("op=profile.get: %w", domain.ErrNotFound)
		}
		return domain.ExternalProfile{}, fmt.Errorf("op=profile.get: %w", err)
	}
	return p, nil
}

// GetByCandidateAndSource loads the profile for one (candidate, source) pair.
func (r *ProfileRepo) GetByCandidateAndSource(ctx domain.Context, candidateID string, source domain.ProfileSource) (domain.ExternalProfile, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM candidate_external_profiles WHERE candidate_id=$1 AND source=$2`, candidateID, source)
	p, err := scanProfile(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ExternalProfile{}, fmt.Errorf("op=profile.get_by_source: %w", domain.ErrNotFound)
		}
		return domain.ExternalProfile{}, fmt.Errorf("op=profile.get_by_source: %w", err)
	}
	return p, nil
}

// ListForCandidate lists profiles for a candidate in stable source order.
func (r *ProfileRepo) ListForCandidate(ctx domain.Context, candidateID string) ([]domain.ExternalProfile, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+profileColumns+` FROM candidate_external_profiles WHERE candidate_id=$1 ORDER BY source ASC`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("op=profile.list: %w", err)
	}
	defer rows.Close()
	var out []domain.ExternalProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("op=profile.list: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=profile.list: %w", err)
	}
	return out, nil
}
