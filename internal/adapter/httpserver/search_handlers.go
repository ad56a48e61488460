package httpserver

import (
	"net/http"
	"strconv"

	"github.com/hirewise/resume-matcher/internal/usecase"
)

// SearchCandidatesHandler answers free-text candidate queries over the
// stored embeddings. Query params: q (required), limit (default 10).
func (s *Server) SearchCandidatesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		hits, err := s.Search.SimilarCandidates(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(hits))
		for _, h := range hits {
			out = append(out, hitBody(h))
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": out})
	}
}

func hitBody(h usecase.CandidateHit) map[string]any {
	return map[string]any{
		"candidate": map[string]any{
			"id":                h.Candidate.ID,
			"name":              h.Candidate.Name,
			"email":             h.Candidate.Email,
			"skills":            h.Candidate.Skills,
			"yearsOfExperience": h.Candidate.YearsOfExperience,
		},
		"evidence": h.Evidence,
		"section":  h.Section,
	}
}
