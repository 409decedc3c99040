// Package jobsearch is the keyword search service. It resolves one boosting
// strategy per request, queries the full-text index, loads the matching
// rows from the store and enriches them with the caller's saved/applied
// flags.
package jobsearch

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/enrich"
	"jobmate/search-service/internal/metrics"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/search"
	"jobmate/search-service/internal/store"
)

// Index is the part of the index manager the service queries.
type Index interface {
	SearchJobs(ctx context.Context, p search.Params) (*search.Result, error)
}

// Store is the relational data the service reads.
type Store interface {
	enrich.Lookup
	PreferenceByUser(ctx context.Context, userID string) (*model.Preference, error)
	EmployerIDByUser(ctx context.Context, userID string) (string, error)
	JobsByIDs(ctx context.Context, ids []string) ([]model.Job, error)
}

// Query is a keyword search request.
type Query struct {
	Keyword         string   `validate:"required,max=200"`
	JobType         string   `validate:"omitempty,max=50"`
	ExperienceLevel string   `validate:"omitempty,max=100"`
	City            string   `validate:"omitempty,max=100"`
	State           string   `validate:"omitempty,max=100"`
	WorkMode        string   `validate:"omitempty,max=50"`
	PayRate         string   `validate:"omitempty,max=50"`
	MinSalary       *int     `validate:"omitempty,min=0"`
	PostedWithin    string   `validate:"omitempty,oneof=24h 3d 7d 30d"`
	Industries      []string `validate:"omitempty,dive,max=100"`
	CompanyTypes    []string `validate:"omitempty,dive,max=50"`
	CompanyName     string   `validate:"omitempty,max=255"`
	Page            int      `validate:"min=1"`
	Limit           int      `validate:"min=1,max=100"`
}

// Response is one page of enriched hits.
type Response struct {
	Data       []model.EnrichedJob `json:"data"`
	Pagination model.Pagination    `json:"pagination"`
}

// Service answers keyword searches.
type Service struct {
	idx Index
	st  Store
	log zerolog.Logger
}

// NewService returns a Service.
func NewService(idx Index, st Store, log zerolog.Logger) *Service {
	return &Service{idx: idx, st: st, log: log}
}

// Search runs q for the optional principal p.
func (s *Service) Search(ctx context.Context, q Query, p *model.Principal) (*Response, error) {
	if strings.TrimSpace(q.Keyword) == "" {
		return nil, apperr.Invalid("keyword is required")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}

	strategy := StrategyFor(p)
	hints := strategy.Hints(s.boostContext(ctx, strategy, p))

	res, err := s.idx.SearchJobs(ctx, search.Params{
		Keyword:         strings.TrimSpace(q.Keyword),
		JobType:         q.JobType,
		ExperienceLevel: q.ExperienceLevel,
		City:            q.City,
		State:           q.State,
		WorkMode:        q.WorkMode,
		PayRate:         q.PayRate,
		MinSalary:       q.MinSalary,
		PostedWithin:    q.PostedWithin,
		Industries:      q.Industries,
		CompanyTypes:    q.CompanyTypes,
		CompanyName:     q.CompanyName,
		Boosts:          hints,
		Page:            q.Page,
		Limit:           q.Limit,
	})
	if err != nil {
		metrics.SearchRequests.WithLabelValues("unavailable").Inc()
		return nil, unavailable(err)
	}

	data, err := enrich.Jobs(ctx, s.st, p, s.hydrate(ctx, res.Jobs))
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Msg("enrich search hits")
		return nil, unavailable(err)
	}

	outcome := "ok"
	if res.Total == 0 {
		outcome = "empty"
	}
	metrics.SearchRequests.WithLabelValues(outcome).Inc()
	s.log.Debug().
		Str("strategy", strategy.String()).Int("hints", len(hints)).
		Int("total", res.Total).Int("page", q.Page).
		Msg("keyword search")

	return &Response{
		Data:       data,
		Pagination: model.NewPagination(res.Total, model.Page{Page: q.Page, Limit: q.Limit}),
	}, nil
}

// hydrate swaps the index projections for the stored rows, keeping the
// index order. The index keeps analyzed copies of a few fields only, so
// counters, flags and original casing come from the store. Hits gone from
// the store since they were indexed are dropped. When the store cannot be
// read the projections are served as they are.
func (s *Service) hydrate(ctx context.Context, hits []model.Job) []model.Job {
	if len(hits) == 0 {
		return hits
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	rows, err := s.st.JobsByIDs(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Int("hits", len(hits)).Msg("load search hits, serving index projection")
		return hits
	}

	byID := make(map[string]model.Job, len(rows))
	for _, j := range rows {
		byID[j.ID] = j
	}
	out := make([]model.Job, 0, len(hits))
	for _, h := range hits {
		if j, ok := byID[h.ID]; ok {
			out = append(out, j)
		}
	}
	if dropped := len(hits) - len(out); dropped > 0 {
		s.log.Debug().Int("dropped", dropped).Msg("search hits no longer active")
	}
	return out
}

// boostContext loads only what strategy needs. Lookup failures and missing
// rows both degrade to an empty context, which yields an unboosted search.
func (s *Service) boostContext(ctx context.Context, strategy Strategy, p *model.Principal) BoostContext {
	var bc BoostContext
	switch strategy {
	case StrategyCandidate:
		pref, err := s.st.PreferenceByUser(ctx, p.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", p.ID).Msg("load preferences, searching unboosted")
		}
		bc.Preference = pref
	case StrategyEmployer:
		id, err := s.st.EmployerIDByUser(ctx, p.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Str("user_id", p.ID).Msg("resolve employer, searching unboosted")
		}
		bc.EmployerID = id
	}
	return bc
}

func unavailable(err error) error {
	if errors.Is(err, apperr.ErrUnavailable) {
		return err
	}
	return apperr.Unavailable(search.ErrUnavailable.Message, err)
}
