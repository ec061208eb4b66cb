// Package server provides the HTTP API for campusbot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/background"
	"github.com/hyperjump/campusbot/internal/config"
	"github.com/hyperjump/campusbot/internal/knowledge"
	"github.com/hyperjump/campusbot/internal/resolver"
	"github.com/hyperjump/campusbot/internal/storage"
	"github.com/hyperjump/campusbot/internal/telemetry"
	"github.com/hyperjump/campusbot/internal/tracker"
	"github.com/hyperjump/campusbot/pkg/utils"
)

const defaultRequestTimeout = 60 * time.Second

// SeedService exposes the seed directories being watched and a way to
// re-import them on demand.
type SeedService interface {
	Directories() []string
	SyncExisting()
}

// Deps are the components the HTTP handlers call into.
type Deps struct {
	Storage   storage.Storage
	Knowledge *knowledge.Service
	Resolver  *resolver.Resolver
	Recorder  *telemetry.Recorder
	Tracker   *tracker.Tracker
	Runner    *background.Runner
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Seed is optional; nil when no seed directories are watched.
	Seed SeedService
}

// Server is the HTTP server for the campusbot API.
type Server struct {
	deps      Deps
	config    *config.ServerConfig
	assistant config.AssistantConfig
	debug     bool
	diskPaths []string
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAssistant sets the persona config used for fallback answers.
func WithAssistant(a config.AssistantConfig) Option {
	return func(s *Server) { s.assistant = a }
}

// WithDebug enables per-request access logging.
func WithDebug(debug bool) Option {
	return func(s *Server) { s.debug = debug }
}

// WithDiskPaths sets the files and directories whose size /api/v1/stats reports.
func WithDiskPaths(paths ...string) Option {
	return func(s *Server) { s.diskPaths = paths }
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		deps:   deps,
		config: cfg,
		logger: utils.LoggerOrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.assistant.FallbackMessage == "" {
		s.assistant.FallbackMessage = config.DefaultFallbackMessage
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.debug {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Get("/conversations/{id}/messages", s.handleListMessages)
		r.Post("/feedback", s.handleFeedback)

		r.Get("/knowledge", s.handleListKnowledge)
		r.Post("/knowledge", s.handleAddKnowledge)
		r.Get("/knowledge/search", s.handleSearchKnowledge)
		r.Post("/knowledge/match", s.handleMatchKnowledge)
		r.Get("/knowledge/{id}", s.handleGetKnowledge)
		r.Put("/knowledge/{id}", s.handleUpdateKnowledge)
		r.Delete("/knowledge/{id}", s.handleDeleteKnowledge)

		r.Get("/patterns", s.handleListPatterns)
		r.Post("/patterns/detect", s.handleDetectPatterns)

		r.Get("/seed/directories", s.handleSeedDirectories)
		r.Post("/seed/sync", s.handleSeedSync)

		r.Get("/stats", s.handleStats)
	})
	r.Get("/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.config.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.config.CORSOrigins
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
