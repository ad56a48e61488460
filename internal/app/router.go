package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hirewise/resume-matcher/internal/adapter/httpserver"
	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice,
// trimming spaces. An empty input means all origins.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Mutating endpoints share one per-IP rate limit.
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		wr.Post("/v1/resumes/upload", srv.UploadHandler())
		wr.Post("/v1/resumes/upload-batch", srv.UploadBatchHandler())
		wr.Post("/v1/matches", srv.CreateMatchHandler())
		wr.Post("/v1/jobs/{jobId}/match-all", srv.MatchAllForJobHandler())
		wr.Post("/v1/candidates/{candidateId}/match-all", srv.MatchCandidateHandler())
		wr.Patch("/v1/matches/{id}", srv.UpdateMatchHandler())
		wr.Post("/v1/candidates/{candidateId}/profiles/enrich", srv.EnrichProfileHandler())
		wr.Post("/v1/candidates/{candidateId}/profiles/enrich-from-url", srv.EnrichFromURLHandler())
		wr.Post("/v1/profiles/{id}/refresh", srv.RefreshProfileHandler())
	})

	// Read-only endpoints.
	r.Get("/v1/trackers/{id}", srv.StatusHandler())
	r.Get("/v1/trackers", srv.RecentTrackersHandler())
	r.Get("/v1/jobs/{jobId}/matches", srv.ListMatchesForJobHandler())
	r.Get("/v1/candidates/search", srv.SearchCandidatesHandler())
	r.Get("/v1/candidates/{candidateId}/profiles", srv.ListProfilesHandler())
	r.Get("/v1/match-audits", srv.ListAuditsHandler())
	r.Get("/v1/match-audits/active", srv.ActiveRunsHandler())

	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}
