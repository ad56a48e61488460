package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
)

// EnrichmentService routes enrichment requests to the registered
// per-source enrichers, computes staleness, and builds the context
// strings fed to the match LLM.
type EnrichmentService struct {
	cfg        config.Config
	candidates domain.CandidateRepository
	profiles   domain.ProfileRepository
	enrichers  map[domain.ProfileSource]domain.Enricher
	order      []domain.ProfileSource
}

// NewEnrichmentService builds the registry from the constructor-provided
// enricher list. Adding a source is registering one more enricher here.
func NewEnrichmentService(
	cfg config.Config,
	candidates domain.CandidateRepository,
	profiles domain.ProfileRepository,
	enrichers []domain.Enricher,
) *EnrichmentService {
	reg := make(map[domain.ProfileSource]domain.Enricher, len(enrichers))
	order := make([]domain.ProfileSource, 0, len(enrichers))
	for _, e := range enrichers {
		reg[e.Source()] = e
		order = append(order, e.Source())
	}
	return &EnrichmentService{
		cfg:        cfg,
		candidates: candidates,
		profiles:   profiles,
		enrichers:  reg,
		order:      order,
	}
}

// Enrich runs the enricher for one source against one candidate,
// creating a PENDING row first when none exists.
func (s *EnrichmentService) Enrich(ctx domain.Context, candidateID string, source domain.ProfileSource) (domain.ExternalProfile, error) {
	enricher, ok := s.enrichers[source]
	if !ok {
		return domain.ExternalProfile{}, fmt.Errorf("op=enrichment.Enrich: source %q: %w", source, domain.ErrInvalidArgument)
	}
	candidate, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("op=enrichment.Enrich: %w", err)
	}
	existing, err := s.pendingRow(ctx, candidateID, source)
	if err != nil {
		return domain.ExternalProfile{}, err
	}
	out, err := enricher.Enrich(ctx, existing, candidate)
	observability.ObserveEnrichment(string(source), string(out.Status))
	return out, err
}

// EnrichFromURL dispatches to the first enricher recognising the URL
// and attaches it to the profile. Returns nil when no enricher matches.
func (s *EnrichmentService) EnrichFromURL(ctx domain.Context, candidateID, rawURL string) (*domain.ExternalProfile, error) {
	for _, source := range s.order {
		enricher := s.enrichers[source]
		if !enricher.SupportsURL(rawURL) {
			continue
		}
		candidate, err := s.candidates.Get(ctx, candidateID)
		if err != nil {
			return nil, fmt.Errorf("op=enrichment.EnrichFromURL: %w", err)
		}
		existing, err := s.pendingRow(ctx, candidateID, source)
		if err != nil {
			return nil, err
		}
		existing.ProfileURL = rawURL
		out, err := enricher.Enrich(ctx, existing, candidate)
		if err != nil {
			return nil, err
		}
		observability.ObserveEnrichment(string(source), string(out.Status))
		return &out, nil
	}
	return nil, nil
}

// Refresh re-invokes the owning enricher on an existing profile row.
func (s *EnrichmentService) Refresh(ctx domain.Context, profileID string) (domain.ExternalProfile, error) {
	profile, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("op=enrichment.Refresh: %w", err)
	}
	enricher, ok := s.enrichers[profile.Source]
	if !ok {
		return domain.ExternalProfile{}, fmt.Errorf("op=enrichment.Refresh: source %q: %w", profile.Source, domain.ErrInvalidArgument)
	}
	candidate, err := s.candidates.Get(ctx, profile.CandidateID)
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("op=enrichment.Refresh: %w", err)
	}
	out, err := enricher.Enrich(ctx, profile, candidate)
	observability.ObserveEnrichment(string(profile.Source), string(out.Status))
	return out, err
}

// GetProfiles lists all profile rows for a candidate.
func (s *EnrichmentService) GetProfiles(ctx domain.Context, candidateID string) ([]domain.ExternalProfile, error) {
	return s.profiles.ListForCandidate(ctx, candidateID)
}

// RefreshStaleProfiles re-enriches every SUCCESS profile older than the
// staleness TTL. Per-source failures are logged and swallowed.
func (s *EnrichmentService) RefreshStaleProfiles(ctx domain.Context, candidate domain.Candidate) {
	profiles, err := s.profiles.ListForCandidate(ctx, candidate.ID)
	if err != nil {
		slog.Warn("stale refresh listing failed", slog.String("candidate_id", candidate.ID), slog.Any("error", err))
		return
	}
	now := time.Now().UTC()
	for _, p := range profiles {
		if p.Status != domain.ProfileSuccess || !p.Stale(now, s.cfg.StalenessTTL()) {
			continue
		}
		enricher, ok := s.enrichers[p.Source]
		if !ok {
			continue
		}
		if _, err := enricher.Enrich(ctx, p, candidate); err != nil {
			slog.Warn("stale refresh failed",
				slog.String("candidate_id", candidate.ID),
				slog.String("source", string(p.Source)),
				slog.Any("error", err))
		}
	}
}

// EnsureInternetSearchFresh guarantees a fresh web-search profile exists
// for the candidate. A fresh SUCCESS row is a no-op.
func (s *EnrichmentService) EnsureInternetSearchFresh(ctx domain.Context, candidate domain.Candidate) {
	p, err := s.profiles.GetByCandidateAndSource(ctx, candidate.ID, domain.SourceInternetSearch)
	if err == nil && p.Status == domain.ProfileSuccess && !p.Stale(time.Now().UTC(), s.cfg.StalenessTTL()) {
		return
	}
	if _, err := s.Enrich(ctx, candidate.ID, domain.SourceInternetSearch); err != nil {
		slog.Warn("internet search refresh failed", slog.String("candidate_id", candidate.ID), slog.Any("error", err))
	}
}

// AutoEnrich enriches each requested source, skipping ones with a fresh
// SUCCESS profile.
func (s *EnrichmentService) AutoEnrich(ctx domain.Context, candidate domain.Candidate, sources []domain.ProfileSource) {
	now := time.Now().UTC()
	for _, source := range sources {
		if _, ok := s.enrichers[source]; !ok {
			continue
		}
		p, err := s.profiles.GetByCandidateAndSource(ctx, candidate.ID, source)
		if err == nil && p.Status == domain.ProfileSuccess && !p.Stale(now, s.cfg.StalenessTTL()) {
			continue
		}
		if _, err := s.Enrich(ctx, candidate.ID, source); err != nil {
			slog.Warn("auto enrich failed",
				slog.String("candidate_id", candidate.ID),
				slog.String("source", string(source)),
				slog.Any("error", err))
		}
	}
}

// BuildContext aggregates SUCCESS profiles into a text block in the
// registry's source order, or nil when none qualify.
func (s *EnrichmentService) BuildContext(ctx domain.Context, candidateID string) (*string, error) {
	profiles, err := s.successProfiles(ctx, candidateID)
	if err != nil || len(profiles) == 0 {
		return nil, err
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return s.sourceIndex(profiles[i].Source) < s.sourceIndex(profiles[j].Source)
	})
	out := renderContext("--- External Profile Information ---", profiles)
	return &out, nil
}

// BuildContextForJob is the job-aware variant: profiles are ordered by
// relevance to the job's combined text, higher first.
func (s *EnrichmentService) BuildContextForJob(ctx domain.Context, candidateID string, job domain.JobRequirement) (*string, error) {
	profiles, err := s.successProfiles(ctx, candidateID)
	if err != nil || len(profiles) == 0 {
		return nil, err
	}
	jobText := strings.ToLower(job.Title + " " + job.Description + " " + job.RequiredSkills + " " + job.DomainRequirements)
	sort.SliceStable(profiles, func(i, j int) bool {
		return sourceRelevance(profiles[i].Source, jobText) > sourceRelevance(profiles[j].Source, jobText)
	})
	out := renderContext("--- External Profile Information (ranked by job relevance) ---", profiles)
	return &out, nil
}

func (s *EnrichmentService) successProfiles(ctx domain.Context, candidateID string) ([]domain.ExternalProfile, error) {
	all, err := s.profiles.ListForCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("op=enrichment.buildContext: %w", err)
	}
	out := all[:0]
	for _, p := range all {
		if p.Status == domain.ProfileSuccess {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *EnrichmentService) sourceIndex(source domain.ProfileSource) int {
	for i, src := range s.order {
		if src == source {
			return i
		}
	}
	return len(s.order)
}

var githubRelevanceKeywords = []string{
	"developer", "engineer", "software", "coding", "code", "github", "open source",
	"backend", "frontend", "fullstack", "java", "python", "javascript", "typescript",
	"golang", "rust",
}

var twitterRelevanceKeywords = []string{
	"social", "community", "advocate", "evangelist", "content", "marketing",
	"brand", "speaker", "influencer", "developer relations",
}

// sourceRelevance scores a source against the lowercased job text.
func sourceRelevance(source domain.ProfileSource, jobText string) int {
	switch source {
	case domain.SourceGitHub:
		if containsAny(jobText, githubRelevanceKeywords) {
			return 3
		}
		return 1
	case domain.SourceTwitter:
		if containsAny(jobText, twitterRelevanceKeywords) {
			return 3
		}
		return 0
	case domain.SourceLinkedIn:
		return 2
	case domain.SourceInternetSearch:
		return 1
	default:
		return 0
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func renderContext(header string, profiles []domain.ExternalProfile) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, p := range profiles {
		b.WriteString("\n[Source: " + string(p.Source) + "]\n")
		writeField(&b, "Profile URL", p.ProfileURL)
		writeField(&b, "Bio", p.Bio)
		writeField(&b, "Company", p.Company)
		writeField(&b, "Location", p.Location)
		if p.PublicRepos > 0 {
			fmt.Fprintf(&b, "Public Repos: %d\n", p.PublicRepos)
		}
		if p.Followers > 0 {
			fmt.Fprintf(&b, "Followers: %d\n", p.Followers)
		}
		writeField(&b, "Summary", p.EnrichedSummary)
		writeField(&b, "Top Projects", p.RepoSummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeField(b *strings.Builder, label, value string) {
	if value != "" {
		b.WriteString(label + ": " + value + "\n")
	}
}

// pendingRow returns the existing profile row or upserts a PENDING one.
func (s *EnrichmentService) pendingRow(ctx domain.Context, candidateID string, source domain.ProfileSource) (domain.ExternalProfile, error) {
	existing, err := s.profiles.GetByCandidateAndSource(ctx, candidateID, source)
	if err == nil {
		return existing, nil
	}
	created, err := s.profiles.Upsert(ctx, domain.ExternalProfile{
		CandidateID: candidateID,
		Source:      source,
		Status:      domain.ProfilePending,
	})
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("op=enrichment.pendingRow: %w", err)
	}
	return created, nil
}
