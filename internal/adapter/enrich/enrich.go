// Package enrich implements the per-source external profile enrichers.
//
// Every enricher follows the same contract: set a terminal status and
// last_fetched_at, catch all errors internally, and persist the row
// before returning. Outbound calls share a circuit breaker so a dead
// provider fails fast instead of stalling matching runs.
package enrich

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hirewise/resume-matcher/internal/domain"
	"github.com/hirewise/resume-matcher/pkg/textx"
)

// caller wraps an http.Client with a circuit breaker per provider.
type caller struct {
	hc      *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newCaller(name string, timeout time.Duration) *caller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &caller{
		hc: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// do executes the request through the breaker and returns status + body.
func (c *caller) do(req *http.Request) (int, []byte, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		return struct {
			status int
			body   []byte
		}{resp.StatusCode, b}, nil
	})
	if err != nil {
		return 0, nil, err
	}
	r := out.(struct {
		status int
		body   []byte
	})
	return r.status, r.body, nil
}

// persister stamps last_fetched_at and upserts the profile row. All
// enrichers finish through here so persistence is never skipped.
type persister struct {
	repo domain.ProfileRepository
}

func (ps persister) finish(ctx domain.Context, p domain.ExternalProfile) (domain.ExternalProfile, error) {
	now := time.Now().UTC()
	p.LastFetchedAt = &now
	return ps.repo.Upsert(ctx, p)
}

// firstPathSegment returns the first non-empty path segment of a URL,
// or "" when the URL does not parse.
func firstPathSegment(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// normalizedNameTokens returns the first and last token of a candidate
// name, lowercased. Single-token names yield one token.
func normalizedNameTokens(name string) []string {
	fields := strings.Fields(strings.ToLower(textx.CollapseWhitespace(name)))
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		return fields[:1]
	}
	return []string{fields[0], fields[len(fields)-1]}
}

// primarySkill returns the first comma-separated skill, or "" when none.
func primarySkill(skills string) string {
	for _, s := range strings.Split(skills, ",") {
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
	}
	return ""
}

func hostContains(raw, needle string) bool {
	return strings.Contains(strings.ToLower(raw), needle)
}
