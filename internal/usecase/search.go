package usecase

import (
	"fmt"
	"strings"

	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
)

// CandidateHit is one semantic search result: the candidate plus the
// resume chunk that matched the query.
type CandidateHit struct {
	Candidate domain.Candidate
	Evidence  string
	Section   domain.SectionType
}

// SearchService answers free-text candidate queries over the stored
// resume embeddings.
type SearchService struct {
	cfg        config.Config
	ai         domain.AIClient
	embeddings domain.EmbeddingRepository
	candidates domain.CandidateRepository
}

// NewSearchService wires the search dependencies.
func NewSearchService(cfg config.Config, aiClient domain.AIClient, embeddings domain.EmbeddingRepository, candidates domain.CandidateRepository) *SearchService {
	return &SearchService{cfg: cfg, ai: aiClient, embeddings: embeddings, candidates: candidates}
}

// SimilarCandidates embeds the query and returns up to limit distinct
// candidates ordered by their closest chunk. Each candidate appears once
// with its best-matching chunk as evidence.
func (s *SearchService) SimilarCandidates(ctx domain.Context, query string, limit int) ([]CandidateHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("op=search.SimilarCandidates: empty query: %w", domain.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	vecs, err := s.ai.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("op=search.SimilarCandidates: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("op=search.SimilarCandidates: %w: expected 1 vector, got %d", domain.ErrSchemaInvalid, len(vecs))
	}

	// Over-fetch chunks since several may belong to the same candidate.
	chunks, err := s.embeddings.SimilarChunks(ctx, vecs[0], limit*4)
	if err != nil {
		return nil, fmt.Errorf("op=search.SimilarCandidates: %w", err)
	}

	seen := make(map[string]bool, limit)
	out := make([]CandidateHit, 0, limit)
	for _, chunk := range chunks {
		if seen[chunk.CandidateID] {
			continue
		}
		candidate, err := s.candidates.Get(ctx, chunk.CandidateID)
		if err != nil {
			continue
		}
		seen[chunk.CandidateID] = true
		out = append(out, CandidateHit{Candidate: candidate, Evidence: chunk.Content, Section: chunk.Section})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
