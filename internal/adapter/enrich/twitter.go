package enrich

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// TwitterEnricher looks up a user over the v2 API. Without a bearer
// token the source is NOT_AVAILABLE; with a token but no stored profile
// URL there is no username to resolve, so the outcome is NOT_FOUND.
type TwitterEnricher struct {
	persister
	call    *caller
	bearer  string
	baseURL string
}

// NewTwitterEnricher constructs the enricher.
func NewTwitterEnricher(repo domain.ProfileRepository, bearer, baseURL string, timeout time.Duration) *TwitterEnricher {
	if baseURL == "" {
		baseURL = "https://api.twitter.com"
	}
	return &TwitterEnricher{
		persister: persister{repo: repo},
		call:      newCaller("twitter", timeout),
		bearer:    bearer,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Source identifies the enricher.
func (e *TwitterEnricher) Source() domain.ProfileSource { return domain.SourceTwitter }

// SupportsURL recognises twitter.com and x.com hosts.
func (e *TwitterEnricher) SupportsURL(raw string) bool {
	return hostContains(raw, "twitter.com") || hostContains(raw, "x.com")
}

type twitterUser struct {
	Data struct {
		Username      string `json:"username"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		Location      string `json:"location"`
		PublicMetrics struct {
			Followers int `json:"followers_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// Enrich resolves the username from the stored profile URL and fetches
// the user. Every outcome is persisted.
func (e *TwitterEnricher) Enrich(ctx domain.Context, existing domain.ExternalProfile, c domain.Candidate) (domain.ExternalProfile, error) {
	p := existing
	p.CandidateID = c.ID
	p.Source = domain.SourceTwitter

	if e.bearer == "" {
		p.Status = domain.ProfileNotAvailable
		p.Error = ""
		p.EnrichedSummary = "Twitter API credentials are not configured."
		return e.finish(ctx, p)
	}

	username := strings.TrimPrefix(firstPathSegment(p.ProfileURL), "@")
	if username == "" {
		p.Status = domain.ProfileNotFound
		p.Error = "no twitter username known for candidate"
		return e.finish(ctx, p)
	}

	u, err := e.fetchUser(ctx, username)
	if err != nil {
		p.Status = domain.ProfileFailed
		p.Error = err.Error()
		return e.finish(ctx, p)
	}

	p.Status = domain.ProfileSuccess
	p.Error = ""
	p.ProfileURL = "https://twitter.com/" + u.Data.Username
	p.DisplayName = u.Data.Name
	p.Bio = u.Data.Description
	p.Location = u.Data.Location
	p.Followers = u.Data.PublicMetrics.Followers
	p.EnrichedSummary = summarizeTwitter(u)
	return e.finish(ctx, p)
}

func (e *TwitterEnricher) fetchUser(ctx domain.Context, username string) (twitterUser, error) {
	var u twitterUser
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		e.baseURL+"/2/users/by/username/"+url.PathEscape(username)+"?user.fields=description,location,public_metrics", nil)
	if err != nil {
		return u, err
	}
	req.Header.Set("Authorization", "Bearer "+e.bearer)
	status, body, err := e.call.do(req)
	if err != nil {
		return u, err
	}
	if status < 200 || status >= 300 {
		return u, fmt.Errorf("twitter status %d", status)
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return u, err
	}
	if u.Data.Username == "" {
		return u, fmt.Errorf("twitter user %q not found", username)
	}
	return u, nil
}

func summarizeTwitter(u twitterUser) string {
	s := fmt.Sprintf("Twitter: @%s (%s), %d followers.", u.Data.Username, u.Data.Name, u.Data.PublicMetrics.Followers)
	if u.Data.Description != "" {
		s += " Bio: " + u.Data.Description
	}
	return s
}
