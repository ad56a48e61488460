package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/hirewise/resume-matcher/internal/adapter/ai"
	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
)

// estimatedTokensPerMatch is the flat per-candidate token estimate
// recorded on completed audits.
const estimatedTokensPerMatch = 1500

// MatchingService scores candidates against job requirements through a
// multi-step loop: refresh enrichment, optionally ask the LLM which
// sources matter, build job-aware context, score, and re-score
// borderline results once context exists.
type MatchingService struct {
	cfg          config.Config
	prompts      config.Prompts
	ai           domain.AIClient
	candidates   domain.CandidateRepository
	requirements domain.JobRequirementRepository
	matches      domain.MatchRepository
	audits       domain.AuditRepository
	enrichment   *EnrichmentService
}

// NewMatchingService wires the matching dependencies.
func NewMatchingService(
	cfg config.Config,
	prompts config.Prompts,
	aiClient domain.AIClient,
	candidates domain.CandidateRepository,
	requirements domain.JobRequirementRepository,
	matches domain.MatchRepository,
	audits domain.AuditRepository,
	enrichment *EnrichmentService,
) *MatchingService {
	return &MatchingService{
		cfg:          cfg,
		prompts:      prompts,
		ai:           aiClient,
		candidates:   candidates,
		requirements: requirements,
		matches:      matches,
		audits:       audits,
		enrichment:   enrichment,
	}
}

// matchResponse is the structured output of the candidate-matching prompt.
type matchResponse struct {
	MatchScore      float64  `json:"matchScore"`
	SkillsScore     float64  `json:"skillsScore"`
	ExperienceScore float64  `json:"experienceScore"`
	EducationScore  float64  `json:"educationScore"`
	DomainScore     float64  `json:"domainScore"`
	Explanation     string   `json:"explanation"`
	Strengths       []string `json:"strengths"`
	Gaps            []string `json:"gaps"`
	Recommendation  string   `json:"recommendation"`
}

// Match runs the single-pair loop and upserts the result.
func (s *MatchingService) Match(ctx domain.Context, candidateID, jobID string) (domain.CandidateMatch, error) {
	candidate, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		return domain.CandidateMatch{}, fmt.Errorf("op=matching.Match: %w", err)
	}
	job, err := s.requirements.Get(ctx, jobID)
	if err != nil {
		return domain.CandidateMatch{}, fmt.Errorf("op=matching.Match: %w", err)
	}
	return s.matchPair(ctx, candidate, job)
}

func (s *MatchingService) matchPair(ctx domain.Context, candidate domain.Candidate, job domain.JobRequirement) (domain.CandidateMatch, error) {
	s.enrichment.RefreshStaleProfiles(ctx, candidate)
	s.enrichment.EnsureInternetSearchFresh(ctx, candidate)

	if s.cfg.SourceSelectionEnabled {
		sources := s.selectSources(ctx, candidate, job)
		s.enrichment.AutoEnrich(ctx, candidate, sources)
	}

	matchCtx, err := s.enrichment.BuildContextForJob(ctx, candidate.ID, job)
	if err != nil {
		slog.Warn("context build failed", slog.String("candidate_id", candidate.ID), slog.Any("error", err))
		matchCtx = nil
	}
	firstPassHadContext := matchCtx != nil

	resp := s.score(ctx, candidate, job, matchCtx)

	if s.cfg.MultiPassEnabled && !firstPassHadContext &&
		resp.MatchScore >= s.cfg.BorderlineMin && resp.MatchScore <= s.cfg.BorderlineMax {
		matchCtx, err = s.enrichment.BuildContextForJob(ctx, candidate.ID, job)
		if err == nil && matchCtx != nil {
			resp = s.score(ctx, candidate, job, matchCtx)
		}
	}

	match := domain.CandidateMatch{
		CandidateID:     candidate.ID,
		JobID:           job.ID,
		MatchScore:      ai.ClampScore(resp.MatchScore),
		SkillsScore:     ai.ClampScore(resp.SkillsScore),
		ExperienceScore: ai.ClampScore(resp.ExperienceScore),
		EducationScore:  ai.ClampScore(resp.EducationScore),
		DomainScore:     ai.ClampScore(resp.DomainScore),
		Explanation:     resp.Explanation,
		IsShortlisted:   ai.ClampScore(resp.MatchScore) >= domain.ShortlistThreshold,
	}
	saved, err := s.matches.Upsert(ctx, match)
	if err != nil {
		return domain.CandidateMatch{}, fmt.Errorf("op=matching.matchPair: %w", err)
	}
	observability.ObserveMatchScore(saved.MatchScore)
	return saved, nil
}

// selectSources asks the LLM which sources to fetch for this pairing.
// Any error or unknown tag falls back to internet search only.
func (s *MatchingService) selectSources(ctx domain.Context, candidate domain.Candidate, job domain.JobRequirement) []domain.ProfileSource {
	fallback := []domain.ProfileSource{domain.SourceInternetSearch}
	user := s.prompts.SourceSelection.Render(map[string]string{
		"candidate_name":   candidate.Name,
		"candidate_skills": candidate.Skills,
		"job_title":        job.Title,
		"job_description":  job.Description,
	})
	raw, err := s.ai.ChatJSON(ctx, s.prompts.SourceSelection.System, user, 0.1, 300)
	if err != nil {
		slog.Warn("source selection failed", slog.Any("error", err))
		return fallback
	}
	var out struct {
		Sources   []string `json:"sources"`
		Reasoning string   `json:"reasoning"`
	}
	if err := ai.DecodeJSON(raw, &out); err != nil || len(out.Sources) == 0 {
		return fallback
	}
	sources := make([]domain.ProfileSource, 0, len(out.Sources))
	for _, tag := range out.Sources {
		source := domain.ProfileSource(strings.ToUpper(strings.TrimSpace(tag)))
		if !knownSource(source) {
			return fallback
		}
		sources = append(sources, source)
	}
	slog.Debug("sources selected",
		slog.String("candidate_id", candidate.ID),
		slog.Any("sources", sources),
		slog.String("reasoning", out.Reasoning))
	return sources
}

func knownSource(s domain.ProfileSource) bool {
	for _, k := range domain.KnownSources {
		if k == s {
			return true
		}
	}
	return false
}

// score calls the match LLM once. On any failure it returns a
// zero-score response so the row still persists.
func (s *MatchingService) score(ctx domain.Context, candidate domain.Candidate, job domain.JobRequirement, matchCtx *string) matchResponse {
	contextBlock := "No external profile information available."
	if matchCtx != nil {
		contextBlock = *matchCtx
	}
	user := s.prompts.CandidateMatching.Render(map[string]string{
		"candidate_name":      candidate.Name,
		"candidate_skills":    candidate.Skills,
		"candidate_domain":    candidate.DomainKnowledge,
		"candidate_education": candidate.AcademicBackground,
		"candidate_years":     fmt.Sprintf("%d", candidate.YearsOfExperience),
		"job_title":           job.Title,
		"job_description":     job.Description,
		"job_required_skills": job.RequiredSkills,
		"job_education":       job.RequiredEducation,
		"job_domain":          job.DomainRequirements,
		"job_min_years":       fmt.Sprintf("%d", job.MinYears),
		"job_max_years":       fmt.Sprintf("%d", job.MaxYears),
		"external_context":    contextBlock,
	})
	raw, err := s.ai.ChatJSON(ctx, s.prompts.CandidateMatching.System, user, 0.2, 2000)
	if err == nil {
		var resp matchResponse
		if derr := ai.DecodeJSON(raw, &resp); derr == nil {
			return resp
		} else {
			err = derr
		}
	}
	slog.Warn("match scoring fell back",
		slog.String("candidate_id", candidate.ID),
		slog.String("job_id", job.ID),
		slog.Any("error", err))
	return matchResponse{Explanation: "AI matching temporarily unavailable"}
}

// candidateSummary is one entry of the audit's compact JSON summary.
type candidateSummary struct {
	CandidateID   string  `json:"candidateId"`
	CandidateName string  `json:"candidateName"`
	MatchScore    float64 `json:"matchScore"`
	SkillsScore   float64 `json:"skillsScore"`
	IsShortlisted bool    `json:"isShortlisted"`
}

// MatchAllForJob scores every candidate against one job under an audit.
// The audit row is created synchronously; its terminal state is written
// asynchronously so a slow audit write never blocks the caller.
func (s *MatchingService) MatchAllForJob(ctx domain.Context, jobID, initiatedBy string) (domain.MatchAudit, error) {
	job, err := s.requirements.Get(ctx, jobID)
	if err != nil {
		return domain.MatchAudit{}, fmt.Errorf("op=matching.MatchAllForJob: %w", err)
	}
	if initiatedBy == "" {
		initiatedBy = "system"
	}
	audit := domain.MatchAudit{
		JobID:       job.ID,
		JobTitle:    job.Title,
		Status:      domain.AuditInProgress,
		InitiatedBy: initiatedBy,
		InitiatedAt: time.Now().UTC(),
	}
	auditID, err := s.audits.Create(ctx, audit)
	if err != nil {
		return domain.MatchAudit{}, fmt.Errorf("op=matching.MatchAllForJob: create audit: %w", err)
	}
	audit.ID = auditID

	started := time.Now()
	candidates, err := s.candidates.List(ctx, domain.Pager{Limit: 10000})
	if err != nil {
		s.failAuditAsync(audit.ID, err.Error(), time.Since(started).Milliseconds())
		return audit, fmt.Errorf("op=matching.MatchAllForJob: list candidates: %w", err)
	}

	var summaries []candidateSummary
	shortlisted := 0
	var sum, top float64
	for _, c := range candidates {
		m, err := s.matchPair(ctx, c, job)
		if err != nil {
			slog.Warn("candidate skipped in batch match",
				slog.String("candidate_id", c.ID),
				slog.String("job_id", job.ID),
				slog.Any("error", err))
			continue
		}
		summaries = append(summaries, candidateSummary{
			CandidateID:   c.ID,
			CandidateName: c.Name,
			MatchScore:    m.MatchScore,
			SkillsScore:   m.SkillsScore,
			IsShortlisted: m.IsShortlisted,
		})
		if m.IsShortlisted {
			shortlisted++
		}
		sum += m.MatchScore
		if m.MatchScore > top {
			top = m.MatchScore
		}
	}

	total := len(summaries)
	avg := 0.0
	if total > 0 {
		avg = sum / float64(total)
	}
	summaryJSON, _ := json.Marshal(summaries)

	done := audit
	done.Status = domain.AuditCompleted
	done.CandidatesMatched = total
	done.Shortlisted = shortlisted
	done.AverageScore = avg
	done.TopScore = top
	done.DurationMS = time.Since(started).Milliseconds()
	done.EstimatedTokens = int64(total) * estimatedTokensPerMatch
	done.Summary = string(summaryJSON)
	s.completeAuditAsync(done)

	audit.Status = domain.AuditCompleted
	audit.CandidatesMatched = total
	audit.Shortlisted = shortlisted
	audit.AverageScore = avg
	audit.TopScore = top
	return audit, nil
}

// MatchCandidateAllJobs scores one candidate against every active job.
// Per-job failures are logged and skipped.
func (s *MatchingService) MatchCandidateAllJobs(ctx domain.Context, candidateID string) ([]domain.CandidateMatch, error) {
	candidate, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("op=matching.MatchCandidateAllJobs: %w", err)
	}
	jobs, err := s.requirements.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=matching.MatchCandidateAllJobs: %w", err)
	}
	out := make([]domain.CandidateMatch, 0, len(jobs))
	for _, job := range jobs {
		m, err := s.matchPair(ctx, candidate, job)
		if err != nil {
			slog.Warn("job skipped in candidate match",
				slog.String("candidate_id", candidateID),
				slog.String("job_id", job.ID),
				slog.Any("error", err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// UpdateMatch flips shortlist/select flags and the recruiter note.
func (s *MatchingService) UpdateMatch(ctx domain.Context, matchID string, shortlisted, selected *bool, note *string) (domain.CandidateMatch, error) {
	return s.matches.UpdateFlags(ctx, matchID, shortlisted, selected, note)
}

// ListAudits pages through match audits, newest first.
func (s *MatchingService) ListAudits(ctx domain.Context, pager domain.Pager) ([]domain.MatchAudit, error) {
	return s.audits.List(ctx, pager)
}

// ActiveRuns returns audits still IN_PROGRESS.
func (s *MatchingService) ActiveRuns(ctx domain.Context) ([]domain.MatchAudit, error) {
	return s.audits.ActiveRuns(ctx)
}

// ListMatchesForJob returns the scored matches for one job, best first.
func (s *MatchingService) ListMatchesForJob(ctx domain.Context, jobID string) ([]domain.CandidateMatch, error) {
	return s.matches.ListForJob(ctx, jobID)
}

// auditContext detaches the terminal audit write from the request
// lifetime so caller cancellation cannot drop it.
func auditContext() (domain.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// Audit write failures are logged, never raised: a batch that matched
// successfully stays successful.
func (s *MatchingService) completeAuditAsync(a domain.MatchAudit) {
	go func() {
		ctx, cancel := auditContext()
		defer cancel()
		if err := s.audits.Complete(ctx, a); err != nil {
			slog.Error("audit completion write failed", slog.String("audit_id", a.ID), slog.Any("error", err))
		}
	}()
}

func (s *MatchingService) failAuditAsync(auditID, errMsg string, durationMS int64) {
	go func() {
		ctx, cancel := auditContext()
		defer cancel()
		if err := s.audits.MarkFailed(ctx, auditID, errMsg, durationMS); err != nil {
			slog.Error("audit failure write failed", slog.String("audit_id", auditID), slog.Any("error", err))
		}
	}()
}
