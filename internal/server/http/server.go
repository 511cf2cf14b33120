// Package httpserver provides the HTTP REST API for the content service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/blob"
	"github.com/sciencesimplified/content-service/internal/editorial"
	"github.com/sciencesimplified/content-service/internal/newsletter"
	"github.com/sciencesimplified/content-service/internal/observability"
	"github.com/sciencesimplified/content-service/internal/repository"
)

// HealthChecker reports database health for the health endpoints.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server

	subjectRepo    repository.SubjectRepository
	paperRepo      repository.PaperRepository
	postRepo       repository.PostRepository
	subscriberRepo repository.SubscriberRepository

	selector  *editorial.Selector
	batch     *editorial.BatchSelector
	generator *editorial.Generator
	publisher *editorial.Publisher
	digest    *newsletter.Service
	blobs     *blob.Store

	health  HealthChecker
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps bundles the server's collaborators.
type Deps struct {
	SubjectRepo    repository.SubjectRepository
	PaperRepo      repository.PaperRepository
	PostRepo       repository.PostRepository
	SubscriberRepo repository.SubscriberRepository

	Selector  *editorial.Selector
	Batch     *editorial.BatchSelector
	Generator *editorial.Generator
	Publisher *editorial.Publisher
	Digest    *newsletter.Service
	Blobs     *blob.Store

	Health  HealthChecker
	Metrics *observability.Metrics
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		subjectRepo:    deps.SubjectRepo,
		paperRepo:      deps.PaperRepo,
		postRepo:       deps.PostRepo,
		subscriberRepo: deps.SubscriberRepo,
		selector:       deps.Selector,
		batch:          deps.Batch,
		generator:      deps.Generator,
		publisher:      deps.Publisher,
		digest:         deps.Digest,
		blobs:          deps.Blobs,
		health:         deps.Health,
		logger:         observability.WithComponent(logger, "http-server"),
		metrics:        deps.Metrics,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Router exposes the router for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Reader routes
		r.Get("/subjects", s.listSubjects)
		r.Get("/posts", s.listPublishedPosts)
		r.Get("/posts/{postID}", s.getPublishedPost)
		r.Post("/newsletter/subscribe", s.subscribe)
		r.Post("/newsletter/unsubscribe", s.unsubscribe)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/subjects", s.createSubject)
			r.Post("/journals", s.createJournal)
			r.Get("/journals", s.listJournals)
			r.Post("/journals/{journalID}/subjects/{subjectID}", s.associateJournal)

			r.Post("/papers/select", s.selectPapers)
			r.Post("/papers/batch-select", s.batchSelect)
			r.Get("/papers", s.listPapers)
			r.Post("/papers/{paperID}/pdf", s.uploadPDF)
			r.Get("/papers/{paperID}/pdf", s.downloadPDF)
			r.Delete("/papers/pending", s.deletePendingPapers)
			r.Delete("/papers/{paperID}", s.deletePaper)

			r.Post("/posts/generate", s.generatePosts)
			r.Get("/posts", s.listAllPosts)
			r.Post("/posts/publish-all", s.publishAllPosts)
			r.Post("/posts/{postID}/publish", s.publishPost)
			r.Post("/posts/{postID}/unpublish", s.unpublishPost)
			r.Delete("/posts/{postID}", s.deletePost)
			r.Delete("/posts", s.deleteAllPosts)

			r.Post("/newsletter/send", s.sendDigest)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}
