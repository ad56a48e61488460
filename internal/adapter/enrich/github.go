package enrich

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// GitHubEnricher resolves a login from the stored profile URL or by
// user search on the candidate name, then pulls user details and the
// top starred repositories.
type GitHubEnricher struct {
	persister
	call    *caller
	limiter *rate.Limiter
	token   string
	baseURL string
}

// NewGitHubEnricher constructs the enricher. The limiter keeps the
// aggregate request rate inside GitHub's unauthenticated budget.
func NewGitHubEnricher(repo domain.ProfileRepository, token, baseURL string, timeout time.Duration) *GitHubEnricher {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubEnricher{
		persister: persister{repo: repo},
		call:      newCaller("github", timeout),
		limiter:   rate.NewLimiter(rate.Every(time.Second), 5),
		token:     token,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Source identifies the enricher.
func (e *GitHubEnricher) Source() domain.ProfileSource { return domain.SourceGitHub }

// SupportsURL recognises github.com hosts.
func (e *GitHubEnricher) SupportsURL(raw string) bool { return hostContains(raw, "github.com") }

type githubUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Blog        string `json:"blog"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

type githubRepo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
}

// Enrich fetches the GitHub profile and persists the outcome. 429 maps
// to FAILED with a rate-limit message; any other failure to FAILED with
// the underlying message.
func (e *GitHubEnricher) Enrich(ctx domain.Context, existing domain.ExternalProfile, c domain.Candidate) (domain.ExternalProfile, error) {
	p := existing
	p.CandidateID = c.ID
	p.Source = domain.SourceGitHub

	login := firstPathSegment(p.ProfileURL)
	if login == "" {
		var err error
		login, err = e.searchLogin(ctx, c.Name)
		if err != nil {
			return e.fail(ctx, p, err)
		}
		if login == "" {
			p.Status = domain.ProfileNotFound
			p.Error = "no github user matched candidate name"
			return e.finish(ctx, p)
		}
	}

	user, err := e.fetchUser(ctx, login)
	if err != nil {
		return e.fail(ctx, p, err)
	}
	repos, err := e.topRepos(ctx, login)
	if err != nil {
		// User details already fetched; a repo listing failure still fails
		// the attempt so staleness forces a clean refetch later.
		return e.fail(ctx, p, err)
	}

	p.Status = domain.ProfileSuccess
	p.Error = ""
	p.ProfileURL = "https://github.com/" + user.Login
	p.DisplayName = user.Name
	p.Bio = user.Bio
	p.Company = user.Company
	p.Location = user.Location
	p.PublicRepos = user.PublicRepos
	p.Followers = user.Followers
	p.RepoSummary = summarizeRepos(repos)
	p.EnrichedSummary = summarizeUser(user, repos)
	return e.finish(ctx, p)
}

func (e *GitHubEnricher) fail(ctx domain.Context, p domain.ExternalProfile, err error) (domain.ExternalProfile, error) {
	p.Status = domain.ProfileFailed
	if isRateLimit(err) {
		p.Error = "github rate limit exceeded"
	} else {
		p.Error = err.Error()
	}
	slog.Warn("github enrichment failed", slog.String("candidate_id", p.CandidateID), slog.Any("error", err))
	return e.finish(ctx, p)
}

func isRateLimit(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}

func (e *GitHubEnricher) get(ctx domain.Context, path string, v any) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	status, body, err := e.call.do(req)
	if err != nil {
		return err
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("github status 429")
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("github status %d", status)
	}
	return json.Unmarshal(body, v)
}

func (e *GitHubEnricher) searchLogin(ctx domain.Context, name string) (string, error) {
	tokens := normalizedNameTokens(name)
	if len(tokens) == 0 {
		return "", nil
	}
	var out struct {
		Items []struct {
			Login string `json:"login"`
		} `json:"items"`
	}
	q := url.QueryEscape(strings.Join(tokens, " "))
	if err := e.get(ctx, "/search/users?per_page=1&q="+q, &out); err != nil {
		return "", err
	}
	if len(out.Items) == 0 {
		return "", nil
	}
	return out.Items[0].Login, nil
}

func (e *GitHubEnricher) fetchUser(ctx domain.Context, login string) (githubUser, error) {
	var u githubUser
	err := e.get(ctx, "/users/"+url.PathEscape(login), &u)
	return u, err
}

func (e *GitHubEnricher) topRepos(ctx domain.Context, login string) ([]githubRepo, error) {
	var out struct {
		Items []githubRepo `json:"items"`
	}
	q := url.QueryEscape("user:" + login)
	if err := e.get(ctx, "/search/repositories?sort=stars&order=desc&per_page=5&q="+q, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func summarizeRepos(repos []githubRepo) string {
	if len(repos) == 0 {
		return ""
	}
	parts := make([]string, 0, len(repos))
	for _, r := range repos {
		s := fmt.Sprintf("%s (%d stars)", r.Name, r.Stars)
		if r.Description != "" {
			s += ": " + r.Description
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

func summarizeUser(u githubUser, repos []githubRepo) string {
	s := fmt.Sprintf("GitHub: @%s — %d repos, %d followers.", u.Login, u.PublicRepos, u.Followers)
	if u.Blog != "" {
		s += " Blog: " + u.Blog + "."
	}
	if rs := summarizeRepos(repos); rs != "" {
		s += " Top projects: " + rs
	}
	return s
}
