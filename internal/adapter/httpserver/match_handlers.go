package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hirewise/resume-matcher/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type createMatchRequest struct {
	CandidateID string `json:"candidateId" validate:"required"`
	JobID       string `json:"jobId" validate:"required"`
}

// CreateMatchHandler scores one candidate against one job.
func (s *Server) CreateMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMatchRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		match, err := s.Matching.Match(r.Context(), req.CandidateID, req.JobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, matchBody(match))
	}
}

// MatchAllForJobHandler runs the batch loop for one job under an audit.
func (s *Server) MatchAllForJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		audit, err := s.Matching.MatchAllForJob(r.Context(), chi.URLParam(r, "jobId"), callerIdentity(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, auditBody(audit))
	}
}

// MatchCandidateHandler scores one candidate against every active job.
func (s *Server) MatchCandidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches, err := s.Matching.MatchCandidateAllJobs(r.Context(), chi.URLParam(r, "candidateId"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(matches))
		for _, m := range matches {
			out = append(out, matchBody(m))
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": out})
	}
}

// ListMatchesForJobHandler returns saved matches for one job, best first.
func (s *Server) ListMatchesForJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches, err := s.Matching.ListMatchesForJob(r.Context(), chi.URLParam(r, "jobId"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(matches))
		for _, m := range matches {
			out = append(out, matchBody(m))
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": out})
	}
}

type updateMatchRequest struct {
	IsShortlisted *bool   `json:"isShortlisted"`
	IsSelected    *bool   `json:"isSelected"`
	RecruiterNote *string `json:"recruiterNote"`
}

// UpdateMatchHandler flips recruiter-facing flags on a saved match.
func (s *Server) UpdateMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateMatchRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if req.IsShortlisted == nil && req.IsSelected == nil && req.RecruiterNote == nil {
			writeError(w, r, fmt.Errorf("%w: nothing to update", domain.ErrInvalidArgument), nil)
			return
		}
		match, err := s.Matching.UpdateMatch(r.Context(), chi.URLParam(r, "id"), req.IsShortlisted, req.IsSelected, req.RecruiterNote)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, matchBody(match))
	}
}

// ListAuditsHandler pages through match audits, newest first.
func (s *Server) ListAuditsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		audits, err := s.Matching.ListAudits(r.Context(), domain.Pager{Limit: limit, Offset: offset})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(audits))
		for _, a := range audits {
			out = append(out, auditBody(a))
		}
		writeJSON(w, http.StatusOK, map[string]any{"audits": out})
	}
}

// ActiveRunsHandler lists audits still IN_PROGRESS.
func (s *Server) ActiveRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		audits, err := s.Matching.ActiveRuns(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(audits))
		for _, a := range audits {
			out = append(out, auditBody(a))
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": out})
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json body", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func matchBody(m domain.CandidateMatch) map[string]any {
	return map[string]any{
		"id":              m.ID,
		"candidateId":     m.CandidateID,
		"jobId":           m.JobID,
		"matchScore":      m.MatchScore,
		"skillsScore":     m.SkillsScore,
		"experienceScore": m.ExperienceScore,
		"educationScore":  m.EducationScore,
		"domainScore":     m.DomainScore,
		"explanation":     m.Explanation,
		"isShortlisted":   m.IsShortlisted,
		"isSelected":      m.IsSelected,
		"recruiterNote":   m.RecruiterNote,
		"createdAt":       m.CreatedAt,
		"updatedAt":       m.UpdatedAt,
	}
}

func auditBody(a domain.MatchAudit) map[string]any {
	body := map[string]any{
		"id":                a.ID,
		"jobId":             a.JobID,
		"jobTitle":          a.JobTitle,
		"status":            a.Status,
		"candidatesMatched": a.CandidatesMatched,
		"shortlisted":       a.Shortlisted,
		"averageScore":      a.AverageScore,
		"topScore":          a.TopScore,
		"durationMs":        a.DurationMS,
		"estimatedTokens":   a.EstimatedTokens,
		"initiatedBy":       a.InitiatedBy,
		"initiatedAt":       a.InitiatedAt,
	}
	if a.CompletedAt != nil {
		body["completedAt"] = *a.CompletedAt
	}
	if a.Error != "" {
		body["error"] = a.Error
	}
	return body
}
