// Package analytics records job views and shares and serves the per-job
// engagement report to the owning employer.
package analytics

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/store"
)

// ShareChannels are the accepted share channels.
var ShareChannels = []string{"linkedin", "twitter", "facebook", "whatsapp", "email", "copy_link", "other"}

// Store is the relational data analytics reads and appends to.
type Store interface {
	JobByID(ctx context.Context, jobID string) (*model.Job, error)
	JobOwnerUserID(ctx context.Context, jobID string) (string, error)
	RecordView(ctx context.Context, jobID, userID, ip, userAgent string) error
	RecordShare(ctx context.Context, jobID, userID, channel string) error
	ShareCounts(ctx context.Context, jobID string) (map[string]int, error)
	JobStats(ctx context.Context, jobID string) (*store.JobStats, error)
}

// View is one job view event.
type View struct {
	JobID     string
	UserID    string
	IP        string
	UserAgent string
}

// Report is the owner-facing engagement report of a job.
type Report struct {
	JobID            string         `json:"jobId"`
	TotalViews       int            `json:"totalViews"`
	UniqueViewers    int            `json:"uniqueViewers"`
	TotalShares      int            `json:"totalShares"`
	SharesByChannel  map[string]int `json:"sharesByChannel"`
	ApplicationCount int            `json:"applicationCount"`
}

// ShareStats is the public share summary of a job.
type ShareStats struct {
	JobID     string         `json:"jobId"`
	Total     int            `json:"total"`
	ByChannel map[string]int `json:"byChannel"`
}

// Service records and reports engagement.
type Service struct {
	st  Store
	log zerolog.Logger
}

// NewService returns a Service.
func NewService(st Store, log zerolog.Logger) *Service {
	return &Service{st: st, log: log}
}

// TrackView records a view by an authenticated user. Anonymous views are
// ignored and report tracked=false.
func (s *Service) TrackView(ctx context.Context, v View) (bool, error) {
	if v.UserID == "" {
		return false, nil
	}
	if err := s.requireJob(ctx, v.JobID); err != nil {
		return false, err
	}
	if err := s.st.RecordView(ctx, v.JobID, v.UserID, v.IP, v.UserAgent); err != nil {
		s.log.Error().Err(err).Str("job_id", v.JobID).Msg("record view")
		return false, apperr.Internal("failed to record view", err)
	}
	return true, nil
}

// TrackShare records a share through channel. userID may be empty.
func (s *Service) TrackShare(ctx context.Context, jobID, userID, channel string) error {
	channel = model.Normalize(channel)
	if !slices.Contains(ShareChannels, channel) {
		return apperr.Invalid("unknown share channel")
	}
	if err := s.requireJob(ctx, jobID); err != nil {
		return err
	}
	if err := s.st.RecordShare(ctx, jobID, userID, channel); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("record share")
		return apperr.Internal("failed to record share", err)
	}
	return nil
}

// JobAnalytics returns the report of jobID to the user owning it. Ownership
// is re-resolved on every call.
func (s *Service) JobAnalytics(ctx context.Context, userID, jobID string) (*Report, error) {
	owner, err := s.st.JobOwnerUserID(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("job not found")
	}
	if err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("resolve job owner")
		return nil, apperr.Internal("failed to load analytics", err)
	}
	if userID == "" || owner != userID {
		return nil, apperr.Forbidden("only the employer who posted this job can view its analytics")
	}

	st, err := s.st.JobStats(ctx, jobID)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("load job stats")
		return nil, apperr.Internal("failed to load analytics", err)
	}
	return &Report{
		JobID:            jobID,
		TotalViews:       st.TotalViews,
		UniqueViewers:    st.UniqueViewers,
		TotalShares:      st.TotalShares,
		SharesByChannel:  st.SharesByChannel,
		ApplicationCount: st.ApplicationCount,
	}, nil
}

// ShareStats returns share totals by channel.
func (s *Service) ShareStats(ctx context.Context, jobID string) (*ShareStats, error) {
	if err := s.requireJob(ctx, jobID); err != nil {
		return nil, err
	}
	counts, err := s.st.ShareCounts(ctx, jobID)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("load share counts")
		return nil, apperr.Internal("failed to load share stats", err)
	}
	out := &ShareStats{JobID: jobID, ByChannel: counts}
	for _, n := range counts {
		out.Total += n
	}
	return out, nil
}

func (s *Service) requireJob(ctx context.Context, jobID string) error {
	_, err := s.st.JobByID(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("job not found")
	}
	if err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("load job")
		return apperr.Internal("failed to load job", err)
	}
	return nil
}
