// Package recommend ranks active, not-yet-applied jobs for one candidate
// with a fixed, additive scoring formula. Every ranking can be explained by
// listing the terms that fired for the job.
package recommend

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/enrich"
	"jobmate/search-service/internal/metrics"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/store"
)

// Store is the relational data the recommender reads.
type Store interface {
	enrich.Lookup
	PreferenceByUser(ctx context.Context, userID string) (*model.Preference, error)
	AppliedJobIDs(ctx context.Context, userID string) ([]string, error)
	SavedJobs(ctx context.Context, userID string) (jobIDs, categoryIDs []string, err error)
	RecentSavedSearches(ctx context.Context, userID string, limit int) ([]model.SavedSearch, error)
	QueryJobs(ctx context.Context, q store.JobQuery) (*store.JobPage, error)
}

// Recommendation is a scored job with the names of the terms that fired.
type Recommendation struct {
	model.EnrichedJob
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matchedTerms"`
}

// Pagination is the paging block of the recommendation feed.
type Pagination struct {
	TotalJob    int  `json:"totalJob"`
	PageCount   int  `json:"pageCount"`
	CurrentPage int  `json:"currentPage"`
	HasNextPage bool `json:"hasNextPage"`
}

// Response is one page of recommendations.
type Response struct {
	Data       []Recommendation `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// Service produces recommendation feeds.
type Service struct {
	st    Store
	terms []Term
	log   zerolog.Logger
	now   func() time.Time
}

// NewService returns a Service scoring with Terms.
func NewService(st Store, log zerolog.Logger) *Service {
	return &Service{st: st, terms: Terms, log: log, now: time.Now}
}

// WithClock returns a copy of s that reads the time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.now = now
	return &c
}

// Recommend returns page pg of the candidate p's recommendations,
// restricted by f.
func (s *Service) Recommend(ctx context.Context, p *model.Principal, f model.Filters, pg model.Page) (*Response, error) {
	if p == nil || p.ID == "" || p.Role != model.RoleCandidate {
		return nil, apperr.Forbidden("recommendations are only available to candidates")
	}
	defer func(start time.Time) {
		metrics.FeedDuration.WithLabelValues("recommended").Observe(time.Since(start).Seconds())
	}(time.Now())

	if pg.Page < 1 {
		pg.Page = 1
	}
	if pg.Limit < 1 {
		pg.Limit = 20
	}

	now := s.now().UTC()
	sig, err := gather(ctx, s.st, p.ID, now, s.log)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", p.ID).Msg("gather recommendation signals")
		return nil, apperr.Internal("failed to load recommendations", err)
	}

	args := &store.Args{}
	where := candidateSet(sig, args)
	where = append(where, store.FilterPredicates(f, args, now)...)
	score := ScoreSQL(s.terms, sig, args)

	page, err := s.st.QueryJobs(ctx, store.JobQuery{
		Args:    args,
		Where:   where,
		Score:   score,
		OrderBy: "score DESC, j.created_at DESC",
		Limit:   pg.Limit,
		Offset:  pg.Offset(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("user_id", p.ID).Msg("query recommendations")
		return nil, apperr.Internal("failed to load recommendations", err)
	}

	enriched, err := enrich.Jobs(ctx, s.st, p, page.Jobs)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", p.ID).Msg("enrich recommendations")
		return nil, apperr.Internal("failed to load recommendations", err)
	}

	data := make([]Recommendation, len(enriched))
	for i := range enriched {
		total, matched := Explain(s.terms, &enriched[i].Job, sig)
		data[i] = Recommendation{EnrichedJob: enriched[i], Score: total, MatchedTerms: matched}
	}

	pages := model.PageCount(page.Total, pg.Limit)
	s.log.Debug().
		Str("user_id", p.ID).Int("total", page.Total).Int("page", pg.Page).
		Int("keywords", len(sig.Keywords)).Int("excluded", len(sig.AppliedIDs)).
		Msg("recommendations")

	return &Response{
		Data: data,
		Pagination: Pagination{
			TotalJob:    page.Total,
			PageCount:   pages,
			CurrentPage: pg.Page,
			HasNextPage: pg.Page < pages,
		},
	}, nil
}

// candidateSet returns the hard predicates: active, not expired and not
// already applied to.
func candidateSet(sig *Signals, args *store.Args) []string {
	where := []string{
		store.ActivePredicate,
		"(j.deadline IS NULL OR j.deadline > " + args.Add(sig.Now) + ")",
	}
	if len(sig.AppliedIDs) > 0 {
		where = append(where, "NOT (j.id::text = ANY("+args.Add(sig.AppliedIDs)+"::text[]))")
	}
	return where
}
