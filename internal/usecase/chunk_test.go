package usecase_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/resume-matcher/internal/domain"
	"github.com/hirewise/resume-matcher/internal/usecase"
)

func TestChunkResumeText_SectionLabels(t *testing.T) {
	t.Parallel()
	text := strings.Join([]string{
		"Education: BSc Computer Science, MIT university.",
		"Worked at Acme Corp as a senior position holder.",
		"Proficient in Go and distributed systems.",
		"Built a side project for log aggregation.",
		"AWS certified solutions architect.",
		"Enjoys hiking and chess.",
	}, "\n\n")

	chunks := usecase.ChunkResumeText(text)
	require.Len(t, chunks, 6)
	assert.Equal(t, domain.SectionEducation, chunks[0].Section)
	assert.Equal(t, domain.SectionExperience, chunks[1].Section)
	assert.Equal(t, domain.SectionSkills, chunks[2].Section)
	assert.Equal(t, domain.SectionProjects, chunks[3].Section)
	assert.Equal(t, domain.SectionCertifications, chunks[4].Section)
	assert.Equal(t, domain.SectionGeneral, chunks[5].Section)
}

func TestChunkResumeText_BoundaryAtCap(t *testing.T) {
	t.Parallel()

	// 999 chars stays whole.
	whole := strings.Repeat("a", 999)
	chunks := usecase.ChunkResumeText(whole)
	require.Len(t, chunks, 1)
	assert.Equal(t, whole, chunks[0].Content)

	// 1001 chars with a sentence boundary splits into two.
	first := strings.Repeat("b", 600) + ". "
	long := first + strings.Repeat("c", 1001-len(first))
	chunks = usecase.ChunkResumeText(long)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 1000)
	}
}

func TestChunkResumeText_HardSplitsWithoutSentenceBoundaries(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 1001)
	chunks := usecase.ChunkResumeText(long)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Content, 1000)
	assert.Len(t, chunks[1].Content, 1)
}

func TestChunkResumeText_SkipsEmptyParagraphs(t *testing.T) {
	t.Parallel()
	chunks := usecase.ChunkResumeText("one\n\n\n\ntwo\n\n   \n\nthree")
	require.Len(t, chunks, 3)
}

func TestChunkResumeText_AccumulatesSentencesUnderCap(t *testing.T) {
	t.Parallel()
	sentence := strings.Repeat("x", 248) + ". "
	para := strings.Repeat(sentence, 8) // 2000 chars
	chunks := usecase.ChunkResumeText(para)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 1000)
		assert.NotEmpty(t, c.Content)
	}
}
