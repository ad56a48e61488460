package enrich

import (
	"net/url"
	"strings"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// LinkedInEnricher records that LinkedIn data cannot be fetched.
// LinkedIn has no public API for profile reads, so every attempt
// persists NOT_AVAILABLE with a fixed rationale. The profile URL is
// preserved when the candidate supplied one, otherwise a people-search
// URL is synthesized from the candidate name.
type LinkedInEnricher struct {
	persister
}

// NewLinkedInEnricher constructs the enricher.
func NewLinkedInEnricher(repo domain.ProfileRepository) *LinkedInEnricher {
	return &LinkedInEnricher{persister: persister{repo: repo}}
}

// Source identifies the enricher.
func (e *LinkedInEnricher) Source() domain.ProfileSource { return domain.SourceLinkedIn }

// SupportsURL recognises linkedin.com hosts.
func (e *LinkedInEnricher) SupportsURL(raw string) bool { return hostContains(raw, "linkedin.com") }

// Enrich always persists NOT_AVAILABLE.
func (e *LinkedInEnricher) Enrich(ctx domain.Context, existing domain.ExternalProfile, c domain.Candidate) (domain.ExternalProfile, error) {
	p := existing
	p.CandidateID = c.ID
	p.Source = domain.SourceLinkedIn
	p.Status = domain.ProfileNotAvailable
	p.Error = ""
	p.EnrichedSummary = "LinkedIn profile data is not accessible via public APIs. Manual review of the profile is recommended."
	if p.ProfileURL == "" {
		p.ProfileURL = "https://www.linkedin.com/search/results/people/?keywords=" + url.QueryEscape(strings.TrimSpace(c.Name))
	}
	return e.finish(ctx, p)
}
