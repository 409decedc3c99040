// Package httpapi is the HTTP surface of the search service.
//
// The caller is identified by the x-user-id and x-user-role headers
// forwarded by the gateway; both are optional on public routes.
//
// Routes:
//
//	GET    /health                      → liveness + index state
//	GET    /metrics                     → prometheus
//	GET    /jobs/search                 → keyword search
//	GET    /jobs/featured|recent        → discovery lists
//	GET    /jobs/popular|trending       → paginated discovery feeds
//	GET    /jobs/recommended            → candidate recommendations
//	GET    /jobs/{id}/similar           → similar jobs
//	POST   /jobs/{id}/views             → track a view
//	GET    /jobs/{id}/shares            → share stats
//	POST   /jobs/{id}/shares            → track a share
//	GET    /jobs/{id}/analytics         → owner analytics
//	GET    /categories, POST /categories, PUT /categories/{id}
//	GET    /skills, POST /skills
//	POST   /internal/index/jobs/{id}    → index one job
//	DELETE /internal/index/jobs/{id}    → remove one job
//	POST   /internal/index/rebuild      → bulk reindex
//	POST   /internal/index/reprobe      → retry a degraded index
//	GET    /internal/index/stats        → index state and size
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jobmate/search-service/internal/analytics"
	"jobmate/search-service/internal/discovery"
	"jobmate/search-service/internal/jobsearch"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/recommend"
	"jobmate/search-service/internal/reference"
	"jobmate/search-service/internal/search"
)

// ─── Dependencies ────────────────────────────────────────────────────────────

type Searcher interface {
	Search(ctx context.Context, q jobsearch.Query, p *model.Principal) (*jobsearch.Response, error)
}

type Discovery interface {
	Featured(ctx context.Context, f model.Filters, limit int, p *model.Principal) ([]model.EnrichedJob, error)
	Recent(ctx context.Context, f model.Filters, limit int, p *model.Principal) ([]model.EnrichedJob, error)
	Popular(ctx context.Context, f model.Filters, pg model.Page, p *model.Principal) (*discovery.Feed, error)
	Trending(ctx context.Context, f model.Filters, pg model.Page, p *model.Principal) (*discovery.Feed, error)
	Similar(ctx context.Context, jobID string, limit int, p *model.Principal) ([]model.EnrichedJob, error)
	InvalidateFeatured(ctx context.Context) error
}

type Recommender interface {
	Recommend(ctx context.Context, p *model.Principal, f model.Filters, pg model.Page) (*recommend.Response, error)
}

type Analytics interface {
	TrackView(ctx context.Context, v analytics.View) (bool, error)
	TrackShare(ctx context.Context, jobID, userID, channel string) error
	JobAnalytics(ctx context.Context, userID, jobID string) (*analytics.Report, error)
	ShareStats(ctx context.Context, jobID string) (*analytics.ShareStats, error)
}

type Reference interface {
	Categories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, in reference.CategoryInput) (*model.Category, error)
	UpdateCategory(ctx context.Context, id string, in reference.CategoryInput) (*model.Category, error)
	Skills(ctx context.Context) ([]model.Skill, error)
	CreateSkill(ctx context.Context, name string) (*model.Skill, error)
}

// Index is the index manager as seen by the internal routes.
type Index interface {
	IndexJob(ctx context.Context, jobID string)
	DeleteJob(ctx context.Context, jobID string)
	BulkIndexAllJobs(ctx context.Context) (model.ReindexResult, error)
	Reprobe(ctx context.Context) search.State
	Stats() search.Stats
}

// Deps are the services behind the routes.
type Deps struct {
	Search    Searcher
	Discovery Discovery
	Recommend Recommender
	Analytics Analytics
	Reference Reference
	Index     Index
}

// ─── Server ──────────────────────────────────────────────────────────────────

// Server routes requests to the services.
type Server struct {
	deps     Deps
	router   *chi.Mux
	validate *validator.Validate
	log      zerolog.Logger
	version  string
}

// NewServer returns a Server with every route mounted.
func NewServer(deps Deps, version string, log zerolog.Logger) *Server {
	s := &Server{
		deps:     deps,
		router:   chi.NewRouter(),
		validate: validator.New(),
		log:      log,
		version:  version,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderUserID, HeaderUserRole},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/jobs", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/featured", s.handleFeatured)
		r.Get("/recent", s.handleRecent)
		r.Get("/popular", s.handlePopular)
		r.Get("/trending", s.handleTrending)
		r.Get("/recommended", s.handleRecommended)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/similar", s.handleSimilar)
			r.Post("/views", s.handleTrackView)
			r.Get("/shares", s.handleShareStats)
			r.Post("/shares", s.handleTrackShare)
			r.Get("/analytics", s.handleJobAnalytics)
		})
	})

	s.router.Route("/categories", func(r chi.Router) {
		r.Get("/", s.handleListCategories)
		r.Post("/", s.handleCreateCategory)
		r.Put("/{id}", s.handleUpdateCategory)
	})
	s.router.Route("/skills", func(r chi.Router) {
		r.Get("/", s.handleListSkills)
		r.Post("/", s.handleCreateSkill)
	})

	s.router.Route("/internal/index", func(r chi.Router) {
		r.Post("/jobs/{id}", s.handleIndexJob)
		r.Delete("/jobs/{id}", s.handleDeleteJob)
		r.Post("/rebuild", s.handleRebuild)
		r.Post("/reprobe", s.handleReprobe)
		r.Get("/stats", s.handleIndexStats)
	})

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, "route not found", http.StatusNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
}

// requestLogger logs one line per request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// ─── Health ──────────────────────────────────────────────────────────────────

type healthResponse struct {
	Status  string       `json:"status"`
	Service string       `json:"service"`
	Version string       `json:"version"`
	Index   search.State `json:"index"`
}

// handleHealth is a liveness probe; a degraded index does not fail it.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, healthResponse{
		Status:  "ok",
		Service: "search-service",
		Version: s.version,
		Index:   s.deps.Index.Stats().State,
	})
}
