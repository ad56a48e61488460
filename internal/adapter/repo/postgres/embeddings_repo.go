package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// EmbeddingRepo stores chunk vectors in a pgvector column. A candidate's
// set is always replaced wholesale; there is no partial reconciliation.
type EmbeddingRepo struct{ Pool PgxPool }

// NewEmbeddingRepo constructs an EmbeddingRepo with the given pool.
func NewEmbeddingRepo(p PgxPool) *EmbeddingRepo { return &EmbeddingRepo{Pool: p} }

// ReplaceForCandidate deletes any prior vectors for the candidate and
// inserts the new set in one transaction.
func (r *EmbeddingRepo) ReplaceForCandidate(ctx domain.Context, candidateID string, embs []domain.ResumeEmbedding) error {
	tracer := otel.Tracer("repo.embeddings")
	ctx, span := tracer.Start(ctx, "embeddings.ReplaceForCandidate")
	defer span.End()
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=embedding.replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM resume_embeddings WHERE candidate_id=$1`, candidateID); err != nil {
		return fmt.Errorf("op=embedding.replace: %w", err)
	}
	now := time.Now().UTC()
	for _, e := range embs {
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		q := `INSERT INTO resume_embeddings (id, candidate_id, content, embedding, section, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`
		if _, err := tx.Exec(ctx, q, id, candidateID, e.Content, pgvector.NewVector(e.Vector), e.Section, now); err != nil {
			return fmt.Errorf("op=embedding.replace: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=embedding.replace: %w", err)
	}
	return nil
}

// CountForCandidate returns the number of stored chunks for a candidate.
func (r *EmbeddingRepo) CountForCandidate(ctx domain.Context, candidateID string) (int64, error) {
	var n int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM resume_embeddings WHERE candidate_id=$1`, candidateID).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=embedding.count: %w", err)
	}
	return n, nil
}

// SimilarChunks returns the k nearest chunks across candidates by cosine
// distance on the pgvector column.
func (r *EmbeddingRepo) SimilarChunks(ctx domain.Context, vector []float32, k int) ([]domain.ResumeEmbedding, error) {
	tracer := otel.Tracer("repo.embeddings")
	ctx, span := tracer.Start(ctx, "embeddings.SimilarChunks")
	defer span.End()
	if k <= 0 {
		k = 10
	}
	q := `SELECT id, candidate_id, content, embedding, section, created_at
		FROM resume_embeddings ORDER BY embedding <=> $1::vector LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("op=embedding.similar: %w", err)
	}
	defer rows.Close()
	var out []domain.ResumeEmbedding
	for rows.Next() {
		var e domain.ResumeEmbedding
		var v pgvector.Vector
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.Content, &v, &e.Section, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=embedding.similar: %w", err)
		}
		e.Vector = v.Slice()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=embedding.similar: %w", err)
	}
	return out, nil
}
