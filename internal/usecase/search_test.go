package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
	"github.com/hirewise/resume-matcher/internal/usecase"
)

func TestSimilarCandidates_DedupesByCandidate(t *testing.T) {
	t.Parallel()
	candidates := newFakeCandidates()
	embeddings := newFakeEmbeddings()

	adaID, err := candidates.Create(context.Background(), domain.Candidate{Name: "Ada"})
	require.NoError(t, err)
	graceID, err := candidates.Create(context.Background(), domain.Candidate{Name: "Grace"})
	require.NoError(t, err)

	embeddings.similar = []domain.ResumeEmbedding{
		{CandidateID: adaID, Content: "Built compilers in Go.", Section: domain.SectionExperience},
		{CandidateID: adaID, Content: "Go, SQL, Kafka.", Section: domain.SectionSkills},
		{CandidateID: graceID, Content: "COBOL pioneer.", Section: domain.SectionExperience},
	}

	svc := usecase.NewSearchService(config.Config{}, &fakeAI{}, embeddings, candidates)
	hits, err := svc.SimilarCandidates(context.Background(), "golang compiler engineer", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Ada", hits[0].Candidate.Name)
	assert.Equal(t, "Built compilers in Go.", hits[0].Evidence, "best chunk wins per candidate")
	assert.Equal(t, "Grace", hits[1].Candidate.Name)
}

func TestSimilarCandidates_EmptyQuery(t *testing.T) {
	t.Parallel()
	svc := usecase.NewSearchService(config.Config{}, &fakeAI{}, newFakeEmbeddings(), newFakeCandidates())
	_, err := svc.SimilarCandidates(context.Background(), "   ", 10)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSimilarCandidates_SkipsDeletedCandidates(t *testing.T) {
	t.Parallel()
	candidates := newFakeCandidates()
	embeddings := newFakeEmbeddings()
	embeddings.similar = []domain.ResumeEmbedding{
		{CandidateID: "gone", Content: "orphaned chunk"},
	}
	svc := usecase.NewSearchService(config.Config{}, &fakeAI{}, embeddings, candidates)
	hits, err := svc.SimilarCandidates(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
