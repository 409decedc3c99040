// Package scheduler runs the periodic index jobs: the reconciliation that
// rebuilds every active job's document, and the re-probe that brings a
// degraded index back.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/search"
)

// Index is the part of the index manager the scheduler drives.
type Index interface {
	State() search.State
	Reprobe(ctx context.Context) search.State
	BulkIndexAllJobs(ctx context.Context) (model.ReindexResult, error)
}

// Scheduler wraps robfig/cron and owns the index maintenance loop.
type Scheduler struct {
	cron        *cron.Cron
	idx         Index
	log         zerolog.Logger
	reindexSpec string // cron spec, e.g. "@every 6h"; empty disables
	reprobeSpec string

	reindexing atomic.Bool
}

// New creates a Scheduler. An empty reindexSpec disables reconciliation;
// an empty reprobeSpec disables re-probing.
func New(idx Index, reindexSpec, reprobeSpec string, log zerolog.Logger) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:        cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		idx:         idx,
		log:         log,
		reindexSpec: reindexSpec,
		reprobeSpec: reprobeSpec,
	}
}

// Start registers the jobs and starts the scheduler. One reconciliation also
// runs immediately so a fresh index is populated without waiting for the
// first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.reindexSpec != "" {
		if _, err := s.cron.AddFunc(s.reindexSpec, func() { s.Reindex(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc reindex: %w", err)
		}
	}
	if s.reprobeSpec != "" {
		if _, err := s.cron.AddFunc(s.reprobeSpec, func() { s.Reprobe(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc reprobe: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info().Str("reindex", s.reindexSpec).Str("reprobe", s.reprobeSpec).Msg("cron started")

	if s.reindexSpec != "" {
		go s.Reindex(ctx)
	}
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("cron stopped")
}

// Reindex runs one reconciliation. It reports false when another run was
// still in progress and this one was skipped.
func (s *Scheduler) Reindex(ctx context.Context) bool {
	if !s.reindexing.CompareAndSwap(false, true) {
		s.log.Info().Msg("reindex still running, skipping")
		return false
	}
	defer s.reindexing.Store(false)

	if s.idx.State() != search.StateAvailable {
		s.log.Warn().Msg("search index degraded, skipping reindex")
		return true
	}

	res, err := s.idx.BulkIndexAllJobs(ctx)
	if errors.Is(err, search.ErrRebuildRunning) {
		s.log.Info().Msg("rebuild started elsewhere, skipping")
		return false
	}
	if err != nil {
		s.log.Error().Err(err).Msg("reindex failed")
		return true
	}
	s.log.Info().Int("total", res.Total).Int("success", res.Success).Int("failed", res.Failed).Msg("reindex cycle complete")
	return true
}

// Reprobe retries a degraded index. When the index comes back a
// reconciliation follows, since writes made while degraded were dropped.
func (s *Scheduler) Reprobe(ctx context.Context) search.State {
	if s.idx.State() == search.StateAvailable {
		return search.StateAvailable
	}
	state := s.idx.Reprobe(ctx)
	if state != search.StateAvailable {
		s.log.Debug().Msg("search index still degraded")
		return state
	}

	s.log.Info().Msg("search index recovered, reconciling")
	if s.reindexSpec != "" {
		s.Reindex(ctx)
	}
	return state
}

// cronLogger routes robfig/cron's logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
