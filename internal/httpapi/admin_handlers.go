package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"jobmate/search-service/internal/reference"
)

// ─── Reference data ──────────────────────────────────────────────────────────

type createSkillRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Reference.Categories(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, cats)
}

// categoryInput decodes and validates a category body. Writes need a caller.
func (s *Server) categoryInput(w http.ResponseWriter, r *http.Request) (reference.CategoryInput, bool) {
	var in reference.CategoryInput
	if p, err := principal(r); err != nil || p == nil {
		jsonError(w, "missing "+HeaderUserID+" header", http.StatusUnauthorized)
		return in, false
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return in, false
	}
	if err := s.validate.Struct(in); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return in, false
	}
	return in, true
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	in, ok := s.categoryInput(w, r)
	if !ok {
		return
	}
	cat, err := s.deps.Reference.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonCreated(w, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		jsonError(w, "invalid category id", http.StatusBadRequest)
		return
	}
	in, ok := s.categoryInput(w, r)
	if !ok {
		return
	}
	cat, err := s.deps.Reference.UpdateCategory(r.Context(), id, in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, cat)
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.deps.Reference.Skills(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, skills)
}

func (s *Server) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	if p, err := principal(r); err != nil || p == nil {
		jsonError(w, "missing "+HeaderUserID+" header", http.StatusUnauthorized)
		return
	}
	var body createSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}
	skill, err := s.deps.Reference.CreateSkill(r.Context(), body.Name)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonCreated(w, skill)
}

// ─── Index maintenance ───────────────────────────────────────────────────────

// handleIndexJob is the write-path hook: the job service calls it after a
// create or update. Indexing is best effort; the featured feed is dropped
// synchronously and a failure there is reported.
func (s *Server) handleIndexJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	s.deps.Index.IndexJob(r.Context(), id)
	s.jobChanged(w, r, id)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	s.deps.Index.DeleteJob(r.Context(), id)
	s.jobChanged(w, r, id)
}

func (s *Server) jobChanged(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.deps.Discovery.InvalidateFeatured(r.Context()); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, envelope{Status: "success", StatusCode: http.StatusAccepted, Message: "Accepted", Data: map[string]string{"jobId": id}})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Index.BulkIndexAllJobs(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, res)
}

func (s *Server) handleReprobe(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]any{"state": s.deps.Index.Reprobe(r.Context())})
}

func (s *Server) handleIndexStats(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, s.deps.Index.Stats())
}
