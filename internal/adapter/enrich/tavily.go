package enrich

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/hirewise/resume-matcher/internal/domain"
	"github.com/hirewise/resume-matcher/pkg/textx"
)

const tavilySnippetMax = 300

// TavilyEnricher runs a general web search for the candidate. It never
// fails the profile: when the key is missing, the response is too thin,
// or the request errors, it persists SUCCESS with a summary built from
// the resume fields instead. That keeps INTERNET_SEARCH context always
// present for matching.
type TavilyEnricher struct {
	persister
	call    *caller
	apiKey  string
	baseURL string
}

// NewTavilyEnricher constructs the enricher.
func NewTavilyEnricher(repo domain.ProfileRepository, apiKey, baseURL string, timeout time.Duration) *TavilyEnricher {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &TavilyEnricher{
		persister: persister{repo: repo},
		call:      newCaller("tavily", timeout),
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Source identifies the enricher.
func (e *TavilyEnricher) Source() domain.ProfileSource { return domain.SourceInternetSearch }

// SupportsURL is always false; search is not tied to a profile URL.
func (e *TavilyEnricher) SupportsURL(string) bool { return false }

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Enrich searches the web for the candidate and persists the summary.
// The outcome is always SUCCESS.
func (e *TavilyEnricher) Enrich(ctx domain.Context, existing domain.ExternalProfile, c domain.Candidate) (domain.ExternalProfile, error) {
	p := existing
	p.CandidateID = c.ID
	p.Source = domain.SourceInternetSearch
	p.Status = domain.ProfileSuccess
	p.Error = ""

	summary := ""
	if e.apiKey != "" {
		var err error
		summary, err = e.search(ctx, c)
		if err != nil {
			slog.Warn("tavily search failed, using resume fallback",
				slog.String("candidate_id", c.ID), slog.Any("error", err))
			summary = ""
		}
	}
	if len(summary) < 100 {
		summary = fallbackSummary(c)
	}
	p.EnrichedSummary = summary
	return e.finish(ctx, p)
}

func (e *TavilyEnricher) search(ctx domain.Context, c domain.Candidate) (string, error) {
	query := strings.TrimSpace(c.Name)
	if skill := primarySkill(c.Skills); skill != "" {
		query += " " + skill
	}
	query += " software developer professional profile"

	body, err := json.Marshal(tavilyRequest{
		APIKey:        e.apiKey,
		Query:         query,
		MaxResults:    5,
		IncludeAnswer: true,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	status, respBody, err := e.call.do(req)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("tavily status %d", status)
	}
	var out tavilyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}

	var b strings.Builder
	if out.Answer != "" {
		b.WriteString(out.Answer)
	}
	for i, r := range out.Results {
		if i >= 3 {
			break
		}
		snippet := textx.Truncate(strings.TrimSpace(r.Content), tavilySnippetMax)
		if snippet == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("- %s: %s", r.Title, snippet))
	}
	return b.String(), nil
}

// fallbackSummary builds search context from the resume itself so
// matching always has something for this source.
func fallbackSummary(c domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional summary for %s based on resume data.", c.Name)
	if c.Skills != "" {
		fmt.Fprintf(&b, " Skills: %s.", c.Skills)
	}
	if c.DomainKnowledge != "" {
		fmt.Fprintf(&b, " Domain knowledge: %s.", c.DomainKnowledge)
	}
	if c.AcademicBackground != "" {
		fmt.Fprintf(&b, " Academic background: %s.", c.AcademicBackground)
	}
	if c.YearsOfExperience > 0 {
		fmt.Fprintf(&b, " Years of experience: %d.", c.YearsOfExperience)
	}
	return b.String()
}
