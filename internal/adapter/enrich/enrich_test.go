package enrich_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/resume-matcher/internal/adapter/enrich"
	"github.com/hirewise/resume-matcher/internal/domain"
)

// memRepo is a minimal in-memory ProfileRepository for enricher tests.
type memRepo struct {
	mu   sync.Mutex
	seq  int
	rows map[string]domain.ExternalProfile
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]domain.ExternalProfile{}}
}

func (r *memRepo) Upsert(_ context.Context, p domain.ExternalProfile) (domain.ExternalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.rows {
		if existing.CandidateID == p.CandidateID && existing.Source == p.Source {
			p.ID = id
			r.rows[id] = p
			return p, nil
		}
	}
	r.seq++
	p.ID = fmt.Sprintf("profile-%d", r.seq)
	r.rows[p.ID] = p
	return p, nil
}

func (r *memRepo) Get(_ context.Context, id string) (domain.ExternalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[id]; ok {
		return p, nil
	}
	return domain.ExternalProfile{}, domain.ErrNotFound
}

func (r *memRepo) GetByCandidateAndSource(_ context.Context, candidateID string, source domain.ProfileSource) (domain.ExternalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.CandidateID == candidateID && p.Source == source {
			return p, nil
		}
	}
	return domain.ExternalProfile{}, domain.ErrNotFound
}

func (r *memRepo) ListForCandidate(_ context.Context, candidateID string) ([]domain.ExternalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExternalProfile
	for _, p := range r.rows {
		if p.CandidateID == candidateID {
			out = append(out, p)
		}
	}
	return out, nil
}

var testCandidate = domain.Candidate{
	ID: "cand-1", Name: "Ada Lovelace", Skills: "Go, SQL",
	DomainKnowledge: "fintech", YearsOfExperience: 12,
}

func TestGitHubEnricher_SuccessFromProfileURL(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users/octo":
			_, _ = w.Write([]byte(`{"login":"octo","name":"Octo Cat","bio":"Builds things","company":"@github","location":"SF","blog":"https://octo.dev","public_repos":8,"followers":42}`))
		case r.URL.Path == "/search/repositories":
			require.Contains(t, r.URL.RawQuery, "per_page=5")
			_, _ = w.Write([]byte(`{"items":[{"name":"engine","description":"a compiler","stargazers_count":120},{"name":"toys","stargazers_count":3}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	repo := newMemRepo()
	e := enrich.NewGitHubEnricher(repo, "tok", srv.URL, 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{ProfileURL: "https://github.com/octo"}, testCandidate)
	require.NoError(t, err)

	assert.Equal(t, domain.ProfileSuccess, p.Status)
	assert.Equal(t, "https://github.com/octo", p.ProfileURL)
	assert.Equal(t, "Octo Cat", p.DisplayName)
	assert.Equal(t, 8, p.PublicRepos)
	assert.Equal(t, 42, p.Followers)
	assert.Contains(t, p.EnrichedSummary, "8 repos, 42 followers")
	assert.Contains(t, p.EnrichedSummary, "Blog: https://octo.dev.")
	assert.Contains(t, p.RepoSummary, "engine (120 stars): a compiler")
	require.NotNil(t, p.LastFetchedAt)
	assert.NotEmpty(t, p.ID, "row persisted")
}

func TestGitHubEnricher_SearchByNameNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/users", r.URL.Path)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	e := enrich.NewGitHubEnricher(newMemRepo(), "", srv.URL, 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileNotFound, p.Status)
	assert.Equal(t, "no github user matched candidate name", p.Error)
}

func TestGitHubEnricher_RateLimited(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := enrich.NewGitHubEnricher(newMemRepo(), "", srv.URL, 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{ProfileURL: "https://github.com/octo"}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileFailed, p.Status)
	assert.Equal(t, "github rate limit exceeded", p.Error)
}

func TestGitHubEnricher_SupportsURL(t *testing.T) {
	t.Parallel()
	e := enrich.NewGitHubEnricher(newMemRepo(), "", "", time.Second)
	assert.True(t, e.SupportsURL("https://GitHub.com/someone"))
	assert.False(t, e.SupportsURL("https://gitlab.com/someone"))
}

func TestLinkedInEnricher_AlwaysNotAvailable(t *testing.T) {
	t.Parallel()
	e := enrich.NewLinkedInEnricher(newMemRepo())
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileNotAvailable, p.Status)
	assert.Contains(t, p.EnrichedSummary, "not accessible via public APIs")
	assert.Contains(t, p.ProfileURL, "linkedin.com/search/results/people/?keywords=Ada")

	// A supplied URL is kept as-is.
	p2, err := e.Enrich(context.Background(), domain.ExternalProfile{ProfileURL: "https://www.linkedin.com/in/ada"}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, "https://www.linkedin.com/in/ada", p2.ProfileURL)
}

func TestTwitterEnricher_NoCredentials(t *testing.T) {
	t.Parallel()
	e := enrich.NewTwitterEnricher(newMemRepo(), "", "", 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{ProfileURL: "https://twitter.com/ada"}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileNotAvailable, p.Status)
	assert.Equal(t, "Twitter API credentials are not configured.", p.EnrichedSummary)
}

func TestTwitterEnricher_NoUsername(t *testing.T) {
	t.Parallel()
	e := enrich.NewTwitterEnricher(newMemRepo(), "bearer", "", 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileNotFound, p.Status)
}

func TestTwitterEnricher_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/users/by/username/ada", r.URL.Path)
		require.Equal(t, "Bearer bearer", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"username":"ada","name":"Ada","description":"Analyst","location":"London","public_metrics":{"followers_count":99}}}`))
	}))
	defer srv.Close()

	e := enrich.NewTwitterEnricher(newMemRepo(), "bearer", srv.URL, 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{ProfileURL: "https://x.com/@ada"}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileSuccess, p.Status)
	assert.Equal(t, "https://twitter.com/ada", p.ProfileURL)
	assert.Equal(t, 99, p.Followers)
	assert.Contains(t, p.EnrichedSummary, "Twitter: @ada (Ada), 99 followers.")
}

func TestTavilyEnricher_FallbackWithoutKey(t *testing.T) {
	t.Parallel()
	e := enrich.NewTavilyEnricher(newMemRepo(), "", "", 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileSuccess, p.Status)
	assert.Contains(t, p.EnrichedSummary, "Professional summary for Ada Lovelace")
	assert.Contains(t, p.EnrichedSummary, "Skills: Go, SQL.")
	assert.Contains(t, p.EnrichedSummary, "Years of experience: 12.")
}

func TestTavilyEnricher_UsesSearchAnswer(t *testing.T) {
	t.Parallel()
	answer := strings.Repeat("Ada Lovelace is a well-known engineer. ", 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"answer":%q,"results":[{"title":"Blog","content":"writes about compilers"}]}`, answer)))
	}))
	defer srv.Close()

	e := enrich.NewTavilyEnricher(newMemRepo(), "key", srv.URL, 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{}, testCandidate)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileSuccess, p.Status)
	assert.Contains(t, p.EnrichedSummary, "well-known engineer")
	assert.Contains(t, p.EnrichedSummary, "- Blog: writes about compilers")
}

func TestTavilyEnricher_ShortResponseFallsBack(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"brief","results":[]}`))
	}))
	defer srv.Close()

	e := enrich.NewTavilyEnricher(newMemRepo(), "key", srv.URL, 5*time.Second)
	p, err := e.Enrich(context.Background(), domain.ExternalProfile{}, testCandidate)
	require.NoError(t, err)
	assert.Contains(t, p.EnrichedSummary, "Professional summary for Ada Lovelace")
}

func TestTavilyEnricher_NeverSupportsURL(t *testing.T) {
	t.Parallel()
	e := enrich.NewTavilyEnricher(newMemRepo(), "", "", time.Second)
	assert.False(t, e.SupportsURL("https://example.com/anything"))
}
