// jobmate-search-service
//
// Job search, discovery and recommendation engine.
// Serves HTTP (chi) and gRPC (health, JobSearch) on a single port:
//   - keyword search over the embedded full-text index, degraded-aware
//   - featured / recent / popular / trending / similar discovery feeds
//   - scored recommendations for candidates
//   - view and share tracking, owner analytics
//   - cached categories and skills
//
// The index follows job writes through the internal hooks and the
// EVENT_JOB_CHANGED channel, and is reconciled by a periodic rebuild.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soheilhy/cmux"

	"jobmate/search-service/internal/analytics"
	"jobmate/search-service/internal/cache"
	"jobmate/search-service/internal/config"
	"jobmate/search-service/internal/db"
	"jobmate/search-service/internal/discovery"
	"jobmate/search-service/internal/grpcserver"
	"jobmate/search-service/internal/httpapi"
	"jobmate/search-service/internal/indexsync"
	"jobmate/search-service/internal/jobsearch"
	"jobmate/search-service/internal/logging"
	"jobmate/search-service/internal/recommend"
	"jobmate/search-service/internal/reference"
	"jobmate/search-service/internal/scheduler"
	"jobmate/search-service/internal/search"
	"jobmate/search-service/internal/store"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[search-service] Config error: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat, nil)
	log := logging.With("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Info().Msg("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL")
	}
	defer pool.Close()
	st := store.New(pool)

	// ── Redis (optional) ─────────────────────────────────────────────────────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		log.Info().Msg("connecting to Redis")
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis")
		}
		defer rdb.Close()
	}

	// ── Cache ────────────────────────────────────────────────────────────────
	var backend cache.Backend
	switch cfg.CacheBackend {
	case config.CacheRedis:
		backend = cache.NewRedisBackend(rdb, "search")
	default:
		mem, err := cache.NewMemoryBackend()
		if err != nil {
			log.Fatal().Err(err).Msg("memory cache")
		}
		backend = mem
	}
	c := cache.New(backend, logging.With("cache"))
	defer c.Close()
	log.Info().Str("backend", cfg.CacheBackend).Msg("cache ready")

	// ── Full-text index ──────────────────────────────────────────────────────
	idx := search.NewManager(st, search.Options{
		DataPath:   cfg.IndexPath,
		Timeout:    cfg.SearchTimeout,
		MaxRetries: cfg.SearchRetries,
		Log:        logging.With("search"),
	})
	if err := idx.Init(ctx); err != nil {
		// Search answers 503 until a re-probe succeeds; everything else keeps working.
		log.Warn().Err(err).Msg("search index unavailable, starting degraded")
	}
	defer idx.Close()

	// ── Services ─────────────────────────────────────────────────────────────
	disc := discovery.NewService(st, c, discovery.Options{
		FeaturedTTL:    cfg.FeaturedTTL,
		TrendingWindow: cfg.TrendingWindow,
	}, logging.With("discovery"))
	deps := httpapi.Deps{
		Search:    jobsearch.NewService(idx, st, logging.With("jobsearch")),
		Discovery: disc,
		Recommend: recommend.NewService(st, logging.With("recommend")),
		Analytics: analytics.NewService(st, logging.With("analytics")),
		Reference: reference.NewService(st, c, cfg.ReferenceTTL, logging.With("reference")),
		Index:     idx,
	}

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(idx, cfg.ReindexSchedule, cfg.ReprobeSchedule, logging.With("scheduler"))
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}

	// ── Write-path listener ──────────────────────────────────────────────────
	if rdb != nil {
		listener := indexsync.New(rdb, cfg.IndexEventsChannel, idx, disc, logging.With("indexsync"))
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Error().Err(err).Msg("job change listener stopped")
			}
		}()
	}

	// ── HTTP + gRPC on one port ──────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Port))
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Port).Msg("listen")
	}
	m := cmux.New(lis)
	grpcLis := m.Match(cmux.HTTP2HeaderField("content-type", "application/grpc"))
	httpLis := m.Match(cmux.HTTP1Fast())

	gsrv := grpcserver.NewServer(idx.Breaker(), grpcserver.NewJobSearch(deps.Search, deps.Recommend), logging.With("grpc"))
	srv := &http.Server{
		Handler:           httpapi.NewServer(deps, version, logging.With("http")),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.SearchTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := gsrv.GRPC().Serve(grpcLis); err != nil && !errors.Is(err, cmux.ErrListenerClosed) {
			log.Error().Err(err).Msg("gRPC server error")
		}
	}()
	go func() {
		if err := srv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	go func() {
		log.Info().Str("version", version).Str("port", cfg.Port).Msg("search-service listening")
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Err(err).Msg("listener error")
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown")
	}
	gsrv.Shutdown()
	m.Close()
	cancel()
	sched.Stop()
	log.Info().Msg("stopped")
}
