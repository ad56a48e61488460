package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hirewise/resume-matcher/internal/domain"
)

type enrichRequest struct {
	Source string `json:"source" validate:"required"`
}

// EnrichProfileHandler runs one enricher against a candidate.
func (s *Server) EnrichProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrichRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		source := domain.ProfileSource(strings.ToUpper(strings.TrimSpace(req.Source)))
		profile, err := s.Enrich.Enrich(r.Context(), chi.URLParam(r, "candidateId"), source)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, profileBody(profile))
	}
}

type enrichFromURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// EnrichFromURLHandler dispatches to the enricher recognising the URL.
func (s *Server) EnrichFromURLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrichFromURLRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		profile, err := s.Enrich.EnrichFromURL(r.Context(), chi.URLParam(r, "candidateId"), req.URL)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if profile == nil {
			writeError(w, r, fmt.Errorf("%w: no enricher recognises url", domain.ErrInvalidArgument), nil)
			return
		}
		writeJSON(w, http.StatusOK, profileBody(*profile))
	}
}

// RefreshProfileHandler re-runs the owning enricher on a profile row.
func (s *Server) RefreshProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.Enrich.Refresh(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, profileBody(profile))
	}
}

// ListProfilesHandler lists a candidate's external profiles.
func (s *Server) ListProfilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := s.Enrich.GetProfiles(r.Context(), chi.URLParam(r, "candidateId"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(profiles))
		for _, p := range profiles {
			out = append(out, profileBody(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
	}
}

func profileBody(p domain.ExternalProfile) map[string]any {
	body := map[string]any{
		"id":          p.ID,
		"candidateId": p.CandidateID,
		"source":      p.Source,
		"status":      p.Status,
		"profileUrl":  p.ProfileURL,
		"displayName": p.DisplayName,
		"bio":         p.Bio,
		"company":     p.Company,
		"location":    p.Location,
		"publicRepos": p.PublicRepos,
		"followers":   p.Followers,
		"summary":     p.EnrichedSummary,
		"topProjects": p.RepoSummary,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
	if p.LastFetchedAt != nil {
		body["lastFetchedAt"] = *p.LastFetchedAt
	}
	if p.Error != "" {
		body["error"] = p.Error
	}
	return body
}
