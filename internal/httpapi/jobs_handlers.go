package httpapi

import (
	"net/http"

	"jobmate/search-service/internal/model"
)

// ─── Keyword search ──────────────────────────────────────────────────────────

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := searchParams(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(q); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	res, err := s.deps.Search.Search(r.Context(), q, p)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonPage(w, res.Data, res.Pagination)
}

// ─── Discovery ───────────────────────────────────────────────────────────────

// listRequest parses the shared inputs of the limit-only discovery lists.
func (s *Server) listRequest(w http.ResponseWriter, r *http.Request) (*model.Principal, model.Filters, int, bool) {
	p, err := principal(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, model.Filters{}, 0, false
	}
	f, err := filterParams(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, f, 0, false
	}
	if err := s.validate.Struct(f); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return nil, f, 0, false
	}
	limit, err := intParam(r.URL.Query(), "limit", 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, f, 0, false
	}
	return p, f, limit, true
}

// feedRequest parses the inputs of the paginated feeds.
func (s *Server) feedRequest(w http.ResponseWriter, r *http.Request) (*model.Principal, model.Filters, model.Page, bool) {
	p, f, _, ok := s.listRequest(w, r)
	if !ok {
		return nil, f, model.Page{}, false
	}
	pg, err := pageParams(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, f, pg, false
	}
	if err := s.validate.Struct(pg); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return nil, f, pg, false
	}
	return p, f, pg, true
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	p, f, limit, ok := s.listRequest(w, r)
	if !ok {
		return
	}
	jobs, err := s.deps.Discovery.Featured(r.Context(), f, limit, p)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, jobs)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	p, f, limit, ok := s.listRequest(w, r)
	if !ok {
		return
	}
	jobs, err := s.deps.Discovery.Recent(r.Context(), f, limit, p)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, jobs)
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	p, f, pg, ok := s.feedRequest(w, r)
	if !ok {
		return
	}
	feed, err := s.deps.Discovery.Popular(r.Context(), f, pg, p)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonPage(w, feed.Data, feed.Pagination)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	p, f, pg, ok := s.feedRequest(w, r)
	if !ok {
		return
	}
	feed, err := s.deps.Discovery.Trending(r.Context(), f, pg, p)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonPage(w, feed.Data, feed.Pagination)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	p, err := principal(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := intParam(r.URL.Query(), "limit", 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobs, err := s.deps.Discovery.Similar(r.Context(), id, limit, p)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, jobs)
}

// ─── Recommendations ─────────────────────────────────────────────────────────

func (s *Server) handleRecommended(w http.ResponseWriter, r *http.Request) {
	p, f, pg, ok := s.feedRequest(w, r)
	if !ok {
		return
	}
	if p == nil {
		jsonError(w, "missing "+HeaderUserID+" header", http.StatusUnauthorized)
		return
	}

	res, err := s.deps.Recommend.Recommend(r.Context(), p, f, pg)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonPage(w, res.Data, res.Pagination)
}
