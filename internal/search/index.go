package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/metrics"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/store"
)

// BatchSize is the number of jobs indexed per bulk reindex batch.
const BatchSize = 100

// ErrUnavailable is the error callers see while the index is degraded.
var ErrUnavailable = apperr.Unavailable("Job search is temporarily unavailable. Please try again later.", nil)

// ErrRebuildRunning is returned by BulkIndexAllJobs while another rebuild
// is in progress.
var ErrRebuildRunning = apperr.Conflict("an index rebuild is already running")

// Source is the part of the relational store the index is built from.
type Source interface {
	JobForIndex(ctx context.Context, jobID string) (*store.IndexRow, error)
	ActiveJobsForIndex(ctx context.Context) ([]store.IndexRow, error)
}

// Options configures a Manager.
type Options struct {
	DataPath      string        // directory holding the index
	Timeout       time.Duration // per-query timeout
	MaxRetries    int           // connectivity attempts before degrading
	RetryInterval time.Duration // initial backoff between attempts
	Cooldown      time.Duration // how long a tripped breaker stays open
	Log           zerolog.Logger
}

// Manager owns the job index.
type Manager struct {
	src     Source
	opts    Options
	log     zerolog.Logger
	breaker *Breaker
	now     func() time.Time

	mu    sync.RWMutex
	index bleve.Index

	rebuilding atomic.Bool
}

// NewManager returns a Manager. Call Init before use.
func NewManager(src Source, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}

	m := &Manager{
		src:     src,
		opts:    opts,
		log:     opts.Log,
		breaker: NewBreaker("job-index", uint32(opts.MaxRetries), opts.Cooldown),
		now:     time.Now,
	}
	metrics.IndexAvailable.Set(1)
	m.breaker.OnChange(func(s State) {
		if s == StateAvailable {
			metrics.IndexAvailable.Set(1)
			m.log.Info().Msg("search index available")
			return
		}
		metrics.IndexAvailable.Set(0)
		m.log.Warn().Msg("search index degraded")
	})
	return m
}

// Breaker exposes the availability state object.
func (m *Manager) Breaker() *Breaker { return m.breaker }

// State reports whether the index is available or degraded.
func (m *Manager) State() State { return m.breaker.State() }

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Init opens the index, creating it with the explicit schema when absent.
// Connectivity is retried up to MaxRetries times; if every attempt fails
// the manager is marked degraded and Init returns the last error. The
// caller logs it and keeps serving.
func (m *Manager) Init(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.RetryInterval
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := m.open()
		if err != nil {
			m.log.Warn().Err(err).Int("attempt", attempt).Str("path", m.opts.DataPath).Msg("search index unreachable")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(m.opts.MaxRetries-1)), ctx))

	if err != nil {
		m.breaker.MarkUnreachable()
		return fmt.Errorf("search index init: %w", err)
	}
	m.breaker.MarkReachable()
	return nil
}

// Reprobe retries the connection once when degraded and reports the
// resulting state. It is a no-op while available.
func (m *Manager) Reprobe(ctx context.Context) State {
	if m.breaker.Available() {
		return StateAvailable
	}

	m.mu.RLock()
	opened := m.index != nil
	m.mu.RUnlock()

	var err error
	if opened {
		// Tripped by query failures: push a trial call through the breaker.
		err = m.breaker.Execute(m.ping)
	} else {
		err = m.open()
	}
	if err != nil {
		m.log.Debug().Err(err).Msg("search index reprobe failed")
		return m.breaker.State()
	}
	m.breaker.MarkReachable()
	return m.breaker.State()
}

// Close releases the index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		return nil
	}
	err := m.index.Close()
	m.index = nil
	return err
}

// open creates or opens the on-disk index. Creation is idempotent: an
// existing index with the current mapping version is reused as is.
func (m *Manager) open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index != nil {
		_, err := m.index.DocCount()
		return err
	}

	if err := os.MkdirAll(m.opts.DataPath, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	indexPath := filepath.Join(m.opts.DataPath, "jobs.bleve")
	versionPath := filepath.Join(m.opts.DataPath, "jobs.version")

	var idx bleve.Index
	if _, err := os.Stat(indexPath); err == nil {
		version, _ := os.ReadFile(versionPath)
		if string(version) == mappingVersion {
			idx, err = bleve.Open(indexPath)
			if err != nil {
				m.log.Warn().Err(err).Str("path", indexPath).Msg("failed to open existing index, recreating")
			}
		} else {
			m.log.Info().Str("old_version", string(version)).Str("new_version", mappingVersion).
				Msg("search index mapping changed, recreating")
		}
		if idx == nil {
			if err := os.RemoveAll(indexPath); err != nil {
				return fmt.Errorf("remove old index: %w", err)
			}
		}
	}

	if idx == nil {
		created, err := bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			m.log.Warn().Err(err).Msg("failed to write index version file")
		}
		m.log.Info().Str("path", indexPath).Str("mapping_version", mappingVersion).Msg("created search index")
		idx = created
	}

	if _, err := idx.DocCount(); err != nil {
		idx.Close()
		return fmt.Errorf("index ping: %w", err)
	}
	m.index = idx
	return nil
}

func (m *Manager) ping() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return ErrDegraded
	}
	_, err := m.index.DocCount()
	return err
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// IndexJob upserts the document of one job. A job or employer that no
// longer exists is skipped silently; an inactive job is removed instead.
// Failures are logged and never returned: indexing must not block the
// write path that triggered it.
func (m *Manager) IndexJob(ctx context.Context, jobID string) {
	if !m.breaker.Available() {
		m.log.Warn().Str("job_id", jobID).Msg("index degraded, skipping indexJob")
		return
	}

	row, err := m.src.JobForIndex(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		m.log.Debug().Str("job_id", jobID).Msg("job or employer gone, skipping indexJob")
		return
	}
	if err != nil {
		metrics.IndexedDocuments.WithLabelValues("upsert", "error").Inc()
		m.log.Error().Err(err).Str("job_id", jobID).Msg("load job for index")
		return
	}

	if !row.Job.IsActive {
		m.DeleteJob(ctx, jobID)
		return
	}
	if err := m.upsert(row); err != nil {
		metrics.IndexedDocuments.WithLabelValues("upsert", "error").Inc()
		m.log.Error().Err(err).Str("job_id", jobID).Msg("index job")
		return
	}
	metrics.IndexedDocuments.WithLabelValues("upsert", "ok").Inc()
}

// DeleteJob removes a job's document. Deleting an absent document succeeds.
func (m *Manager) DeleteJob(_ context.Context, jobID string) {
	if !m.breaker.Available() {
		m.log.Warn().Str("job_id", jobID).Msg("index degraded, skipping deleteJob")
		return
	}
	err := m.withIndex(func(idx bleve.Index) error { return idx.Delete(jobID) })
	if err != nil {
		metrics.IndexedDocuments.WithLabelValues("delete", "error").Inc()
		m.log.Error().Err(err).Str("job_id", jobID).Msg("delete job from index")
		return
	}
	metrics.IndexedDocuments.WithLabelValues("delete", "ok").Inc()
}

// BulkIndexAllJobs rebuilds every active job's document in batches of
// BatchSize, then removes documents whose job is no longer active. A
// failing document is counted and skipped. Re-running it converges to the
// same index. Only one rebuild runs at a time; a second caller gets
// ErrRebuildRunning.
func (m *Manager) BulkIndexAllJobs(ctx context.Context) (model.ReindexResult, error) {
	var res model.ReindexResult
	if !m.breaker.Available() {
		return res, ErrUnavailable
	}
	if !m.rebuilding.CompareAndSwap(false, true) {
		return res, ErrRebuildRunning
	}
	defer m.rebuilding.Store(false)

	rows, err := m.src.ActiveJobsForIndex(ctx)
	if err != nil {
		return res, apperr.Internal("load jobs for reindex", err)
	}
	res.Total = len(rows)

	keep := make(map[string]bool, len(rows))
	for start := 0; start < len(rows); start += BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+BatchSize, len(rows))
		for i := start; i < end; i++ {
			keep[rows[i].Job.ID] = true
			if err := m.upsert(&rows[i]); err != nil {
				res.Failed++
				m.log.Warn().Err(err).Str("job_id", rows[i].Job.ID).Msg("bulk index job")
				continue
			}
			res.Success++
		}
		m.log.Debug().Int("indexed", end).Int("total", res.Total).Msg("bulk index batch done")
	}
	metrics.IndexedDocuments.WithLabelValues("upsert", "ok").Add(float64(res.Success))
	metrics.IndexedDocuments.WithLabelValues("upsert", "error").Add(float64(res.Failed))

	removed, err := m.sweep(ctx, keep)
	if err != nil {
		m.log.Warn().Err(err).Msg("sweep stale documents")
	}

	m.log.Info().
		Int("total", res.Total).Int("success", res.Success).Int("failed", res.Failed).Int("removed", removed).
		Msg("bulk reindex complete")
	return res, nil
}

// sweep deletes documents whose id is not in keep. keep is a snapshot, so
// a job indexed after it was taken would look stale: each candidate is
// re-read from the source and only deleted when it is gone or inactive.
func (m *Manager) sweep(ctx context.Context, keep map[string]bool) (int, error) {
	const page = 1000
	var stale []string
	for from := 0; ; from += page {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), page, from, false)
		var res *bleve.SearchResult
		err := m.withIndex(func(idx bleve.Index) error {
			var err error
			res, err = idx.SearchInContext(ctx, req)
			return err
		})
		if err != nil {
			return 0, err
		}
		for _, hit := range res.Hits {
			if !keep[hit.ID] {
				stale = append(stale, hit.ID)
			}
		}
		if len(res.Hits) < page {
			break
		}
	}

	removed := 0
	for _, id := range stale {
		row, err := m.src.JobForIndex(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			m.log.Warn().Err(err).Str("job_id", id).Msg("recheck stale document, keeping it")
			continue
		case row.Job.IsActive:
			continue
		}
		if err := m.withIndex(func(idx bleve.Index) error { return idx.Delete(id) }); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) upsert(row *store.IndexRow) error {
	doc := NewDocument(&row.Job, &row.Company)
	return m.withIndex(func(idx bleve.Index) error {
		return idx.Index(doc.JobID, doc.ToMap())
	})
}

func (m *Manager) withIndex(fn func(bleve.Index) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return ErrDegraded
	}
	return fn(m.index)
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Result is one page of keyword search hits.
type Result struct {
	Jobs       []model.Job
	Scores     []float64
	Total      int
	TotalPages int
	Page       int
	Limit      int
}

// SearchJobs runs a keyword query. While degraded it fails with
// ErrUnavailable rather than returning an empty page, so callers can tell
// "search is down" from "no matches".
func (m *Manager) SearchJobs(ctx context.Context, p Params) (*Result, error) {
	if !m.breaker.Available() {
		return nil, ErrUnavailable
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(p, m.now()), p.Limit, (p.Page-1)*p.Limit, false)
	req.SortBy([]string{"-_score", "-" + FieldCreatedAt})
	req.Fields = storedFields

	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	var sr *bleve.SearchResult
	start := time.Now()
	err := m.breaker.Execute(func() error {
		return m.withIndex(func(idx bleve.Index) error {
			var err error
			sr, err = idx.SearchInContext(ctx, req)
			return err
		})
	})
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.log.Error().Err(err).Str("keyword", p.Keyword).Msg("search index query failed")
		return nil, apperr.Unavailable(ErrUnavailable.Message, err)
	}

	res := &Result{
		Jobs:   make([]model.Job, 0, len(sr.Hits)),
		Scores: make([]float64, 0, len(sr.Hits)),
		Total:  int(sr.Total),
		Page:   p.Page,
		Limit:  p.Limit,
	}
	res.TotalPages = model.PageCount(res.Total, p.Limit)
	for _, hit := range sr.Hits {
		res.Jobs = append(res.Jobs, jobFromFields(hit.ID, hit.Fields))
		res.Scores = append(res.Scores, hit.Score)
	}
	return res, nil
}

// Stats describes the index for the admin surface.
type Stats struct {
	State         State  `json:"state"`
	DocumentCount uint64 `json:"documentCount"`
}

// Stats reports the current state and document count.
func (m *Manager) Stats() Stats {
	st := Stats{State: m.breaker.State()}
	_ = m.withIndex(func(idx bleve.Index) error {
		n, err := idx.DocCount()
		st.DocumentCount = n
		return err
	})
	return st
}
