// Package discovery serves the non-personalized job feeds: featured, recent,
// popular, trending and similar-to. Every feed reads the relational store
// directly and keeps working while the full-text index is degraded.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/cache"
	"jobmate/search-service/internal/enrich"
	"jobmate/search-service/internal/metrics"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/store"
)

// Limits of the unpaginated feeds.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Store is the relational data the feeds read.
type Store interface {
	enrich.Lookup
	QueryJobs(ctx context.Context, q store.JobQuery) (*store.JobPage, error)
	JobByID(ctx context.Context, jobID string) (*model.Job, error)
}

// Options tunes the feeds.
type Options struct {
	FeaturedTTL    time.Duration
	TrendingWindow time.Duration
	Now            func() time.Time
}

// Feed is one page of a paginated feed.
type Feed struct {
	Data       []model.EnrichedJob `json:"data"`
	Pagination model.Pagination    `json:"pagination"`
}

// Service serves the discovery feeds.
type Service struct {
	st    Store
	cache *cache.Cache
	opts  Options
	log   zerolog.Logger
	now   func() time.Time
}

// NewService returns a Service. Zero options fall back to a 5 minute
// featured TTL and a 7 day trending window.
func NewService(st Store, c *cache.Cache, opts Options, log zerolog.Logger) *Service {
	if opts.FeaturedTTL <= 0 {
		opts.FeaturedTTL = 5 * time.Minute
	}
	if opts.TrendingWindow <= 0 {
		opts.TrendingWindow = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{st: st, cache: c, opts: opts, log: log, now: opts.Now}
}

// ─── Featured / Recent ──────────────────────────────────────────────────────

// FeaturedKey is the cache key of the unfiltered featured feed. A single
// list of MaxLimit jobs is cached and sliced per request, so one delete
// drops every variant.
const FeaturedKey = "jobs:featured"

const featuredPredicate = "j.is_featured = true"

// Featured returns active featured jobs, newest first. The unfiltered feed
// is cached for FeaturedTTL; filtered variants always hit the store.
func (s *Service) Featured(ctx context.Context, f model.Filters, limit int, p *model.Principal) ([]model.EnrichedJob, error) {
	defer observe("featured", time.Now())
	limit = clampLimit(limit)

	var (
		jobs []model.Job
		err  error
	)
	if isUnfiltered(f) {
		jobs, err = cache.Remember(ctx, s.cache, FeaturedKey, s.opts.FeaturedTTL, func(ctx context.Context) ([]model.Job, error) {
			return s.list(ctx, f, MaxLimit, featuredPredicate)
		})
		if len(jobs) > limit {
			jobs = jobs[:limit]
		}
	} else {
		jobs, err = s.list(ctx, f, limit, featuredPredicate)
	}
	if err != nil {
		return nil, s.fail("featured", err)
	}
	return s.enrich(ctx, p, jobs)
}

// InvalidateFeatured drops the cached featured feed. Every job write goes
// through it, since any change can add, remove or reorder a featured job.
func (s *Service) InvalidateFeatured(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, FeaturedKey); err != nil {
		s.log.Error().Err(err).Msg("invalidate featured feed")
		return apperr.Unavailable("failed to refresh featured jobs", err)
	}
	return nil
}

// Recent returns the newest active jobs. Never cached.
func (s *Service) Recent(ctx context.Context, f model.Filters, limit int, p *model.Principal) ([]model.EnrichedJob, error) {
	defer observe("recent", time.Now())
	jobs, err := s.list(ctx, f, clampLimit(limit))
	if err != nil {
		return nil, s.fail("recent", err)
	}
	return s.enrich(ctx, p, jobs)
}

func (s *Service) list(ctx context.Context, f model.Filters, limit int, extra ...string) ([]model.Job, error) {
	args := &store.Args{}
	where := append([]string{store.ActivePredicate}, extra...)
	where = append(where, store.FilterPredicates(f, args, s.now())...)

	page, err := s.st.QueryJobs(ctx, store.JobQuery{
		Args:    args,
		Where:   where,
		OrderBy: "j.created_at DESC",
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	return page.Jobs, nil
}

// ─── Popular / Trending ─────────────────────────────────────────────────────

// Popularity weights.
const (
	PopularApplicationWeight = 5
	PopularViewWeight        = 2
)

var popularityExpr = fmt.Sprintf("j.application_count * %d + j.view_count * %d", PopularApplicationWeight, PopularViewWeight)

const activityExpr = "COALESCE(j.last_activity_at, j.updated_at)"

// PopularityScore is the engagement score popular jobs are ranked by.
func PopularityScore(j *model.Job) int {
	return j.ApplicationCount*PopularApplicationWeight + j.ViewCount*PopularViewWeight
}

// TrendingActivity is the timestamp trending jobs are windowed and ranked by.
func TrendingActivity(j *model.Job) time.Time {
	if j.LastActivityAt != nil {
		return *j.LastActivityAt
	}
	return j.UpdatedAt
}

// Popular ranks active jobs by PopularityScore, newest first on ties.
func (s *Service) Popular(ctx context.Context, f model.Filters, pg model.Page, p *model.Principal) (*Feed, error) {
	defer observe("popular", time.Now())
	args := &store.Args{}
	where := append([]string{store.ActivePredicate}, store.FilterPredicates(f, args, s.now())...)

	return s.page(ctx, "popular", p, pg, store.JobQuery{
		Args:    args,
		Where:   where,
		Score:   popularityExpr,
		OrderBy: "score DESC, j.created_at DESC",
	})
}

// Trending returns active jobs with activity inside the trending window,
// most recent activity first.
func (s *Service) Trending(ctx context.Context, f model.Filters, pg model.Page, p *model.Principal) (*Feed, error) {
	defer observe("trending", time.Now())
	args := &store.Args{}
	since := s.now().UTC().Add(-s.opts.TrendingWindow)
	where := []string{store.ActivePredicate, activityExpr + " >= " + args.Add(since)}
	where = append(where, store.FilterPredicates(f, args, s.now())...)

	return s.page(ctx, "trending", p, pg, store.JobQuery{
		Args:    args,
		Where:   where,
		OrderBy: activityExpr + " DESC, j.application_count DESC, j.view_count DESC, j.created_at DESC",
	})
}

func (s *Service) page(ctx context.Context, feed string, p *model.Principal, pg model.Page, q store.JobQuery) (*Feed, error) {
	pg = normalizePage(pg)
	q.Limit, q.Offset = pg.Limit, pg.Offset()

	res, err := s.st.QueryJobs(ctx, q)
	if err != nil {
		return nil, s.fail(feed, err)
	}
	data, err := s.enrich(ctx, p, res.Jobs)
	if err != nil {
		return nil, err
	}
	return &Feed{Data: data, Pagination: model.NewPagination(res.Total, pg)}, nil
}

// ─── Similar ─────────────────────────────────────────────────────────────────

// Similar returns other active jobs sharing the source job's category or
// the first word of its title. Title words match whole: "java" does not
// match "javascript".
func (s *Service) Similar(ctx context.Context, jobID string, limit int, p *model.Principal) ([]model.EnrichedJob, error) {
	defer observe("similar", time.Now())

	src, err := s.st.JobByID(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("job not found")
	}
	if err != nil {
		return nil, s.fail("similar", err)
	}

	args := &store.Args{}
	var match []string
	if src.CategoryID != nil {
		match = append(match, "j.category_id = "+args.Add(*src.CategoryID)+"::uuid")
	}
	if word := FirstTitleWord(src.Title); word != "" {
		match = append(match, args.Add(word)+"::text = ANY(regexp_split_to_array(LOWER(j.title), '[[:space:]]+'))")
	}
	if len(match) == 0 {
		return []model.EnrichedJob{}, nil
	}

	page, err := s.st.QueryJobs(ctx, store.JobQuery{
		Args: args,
		Where: []string{
			store.ActivePredicate,
			"j.id <> " + args.Add(src.ID) + "::uuid",
			"(" + strings.Join(match, " OR ") + ")",
		},
		OrderBy: "j.created_at DESC",
		Limit:   clampLimit(limit),
	})
	if err != nil {
		return nil, s.fail("similar", err)
	}
	return s.enrich(ctx, p, page.Jobs)
}

// FirstTitleWord returns the lowercased first word of title.
func FirstTitleWord(title string) string {
	words := strings.Fields(strings.ToLower(title))
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *Service) enrich(ctx context.Context, p *model.Principal, jobs []model.Job) ([]model.EnrichedJob, error) {
	out, err := enrich.Jobs(ctx, s.st, p, jobs)
	if err != nil {
		return nil, s.fail("enrich", err)
	}
	return out, nil
}

func (s *Service) fail(feed string, err error) error {
	s.log.Error().Err(err).Str("feed", feed).Msg("discovery feed failed")
	return apperr.Internal("failed to load jobs", err)
}

func observe(feed string, start time.Time) {
	metrics.FeedDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
}

func isUnfiltered(f model.Filters) bool {
	return len(store.FilterPredicates(f, &store.Args{}, time.Time{})) == 0
}

func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func normalizePage(p model.Page) model.Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}
