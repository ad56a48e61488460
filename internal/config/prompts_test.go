package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/resume-matcher/internal/config"
)

const validPrompts = `
resume_analysis:
  system: "You extract fields."
  user: "Resume: {resume_text}"
candidate_matching:
  system: "You score matches."
  user: "{candidate_name} vs {job_title}"
source_selection:
  system: "You pick sources."
  user: "{candidate_name} for {job_title}"
`

func writePrompts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPrompts(t *testing.T) {
	t.Parallel()
	p, err := config.LoadPrompts(writePrompts(t, validPrompts))
	require.NoError(t, err)
	assert.Equal(t, "You extract fields.", p.ResumeAnalysis.System)
	assert.Equal(t, "{candidate_name} vs {job_title}", p.CandidateMatching.User)
}

func TestLoadPrompts_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.LoadPrompts(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadPrompts_IncompleteTemplate(t *testing.T) {
	t.Parallel()
	incomplete := `
resume_analysis:
  system: "sys"
  user: "user"
candidate_matching:
  system: "sys"
source_selection:
  system: "sys"
  user: "user"
`
	_, err := config.LoadPrompts(writePrompts(t, incomplete))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate_matching")
}

func TestRender(t *testing.T) {
	t.Parallel()
	tpl := config.PromptTemplate{User: "Score {candidate_name} against {job_title}. Context: {external_context}"}
	out := tpl.Render(map[string]string{
		"candidate_name":   "Ada",
		"job_title":        "Backend Engineer",
		"external_context": "none",
	})
	assert.Equal(t, "Score Ada against Backend Engineer. Context: none", out)
}

func TestRender_UnknownPlaceholderLeftIntact(t *testing.T) {
	t.Parallel()
	tpl := config.PromptTemplate{User: "Hello {name}, score is {score}"}
	out := tpl.Render(map[string]string{"name": "Ada"})
	assert.Equal(t, "Hello Ada, score is {score}", out)
}
