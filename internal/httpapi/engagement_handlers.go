package httpapi

import (
	"net"
	"net/http"

	"github.com/goccy/go-json"

	"jobmate/search-service/internal/analytics"
)

type trackShareRequest struct {
	Channel string `json:"channel" validate:"required,max=50"`
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
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

	tracked, err := s.deps.Analytics.TrackView(r.Context(), analytics.View{
		JobID:     id,
		UserID:    p.UserID(),
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, map[string]bool{"tracked": tracked})
}

func (s *Server) handleTrackShare(w http.ResponseWriter, r *http.Request) {
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

	var body trackShareRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "body must contain channel", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	if err := s.deps.Analytics.TrackShare(r.Context(), id, p.UserID(), body.Channel); err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonCreated(w, map[string]string{"jobId": id, "channel": body.Channel})
}

func (s *Server) handleShareStats(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	stats, err := s.deps.Analytics.ShareStats(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, stats)
}

func (s *Server) handleJobAnalytics(w http.ResponseWriter, r *http.Request) {
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
	if p == nil {
		jsonError(w, "missing "+HeaderUserID+" header", http.StatusUnauthorized)
		return
	}

	report, err := s.deps.Analytics.JobAnalytics(r.Context(), p.ID, id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	jsonOK(w, report)
}

// clientIP is the caller address without the port. middleware.RealIP has
// already applied X-Forwarded-For and X-Real-IP.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
