package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
	"mercator-hq/courier/pkg/export/job"
	"mercator-hq/courier/pkg/telemetry/health"
)

// Jobs is the job manager surface used by the API. *job.Manager implements it.
type Jobs interface {
	StartExport(ctx context.Context, req job.StartRequest) (*job.Job, error)
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListJobs(ctx context.Context, f job.Filter) ([]*job.Job, error)
	DeleteJob(ctx context.Context, id string) error
	Transfer(ctx context.Context, id string, method job.Method) (*job.Job, error)
	FilePath(j *job.Job) (string, error)
}

// Formats is the format registry surface used by the API. *format.Registry
// implements it.
type Formats interface {
	ListFormats(ctx context.Context, t export.RecordType) ([]*format.Definition, error)
	SaveCustomFormat(ctx context.Context, cf *format.CustomFormat) (*format.CustomFormat, error)
	DeleteCustomFormat(ctx context.Context, t export.RecordType, key string) error
	ActiveFormat(ctx context.Context, t export.RecordType) (string, error)
	SetActiveFormat(ctx context.Context, t export.RecordType, key string) error
}

// RequestRecorder records HTTP request metrics. *metrics.Collector
// implements it.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, code int, d time.Duration)
}

// Deps are the collaborators of a Server. Records, Metrics and
// MetricsHandler are optional.
type Deps struct {
	Jobs    Jobs
	Formats Formats

	// Records resolves query-based export requests into identifiers.
	Records export.RecordStore

	// Export defaults applied to requests that leave options unset.
	IncludeHeader bool
	AddBOM        bool

	Metrics        RequestRecorder
	MetricsHandler http.Handler
	MetricsPath    string

	// Health runs the readiness checks. A nil checker reports ready.
	Health *health.Checker
	Build  BuildInfo
}

// BuildInfo is served by /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the HTTP API of courier.
type Server struct {
	config     *config.ServerConfig
	deps       Deps
	router     chi.Router
	validate   *validator.Validate
	httpServer *http.Server
	logger     *slog.Logger

	mu        sync.RWMutex
	isRunning bool
}

// NewServer creates a server and mounts its routes.
func NewServer(cfg *config.ServerConfig, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	s := &Server{
		config:   cfg,
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default().With("component", "server"),
	}
	s.router = s.setupRoutes()
	return s
}

// setupRoutes configures the router and middleware chain.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestContext)
	r.Use(s.logRequests)
	r.Use(recovery)

	r.Get("/health", s.deps.Health.LivenessHandler())
	r.Get("/ready", s.deps.Health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.deps.Build.Version, s.deps.Build.Commit, s.deps.Build.BuildTime))
	if s.deps.MetricsHandler != nil {
		path := s.deps.MetricsPath
		if path == "" {
			path = config.DefaultMetricsPath
		}
		r.Handle(path, s.deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/exports", func(r chi.Router) {
			r.Post("/", s.handleStartExport)
			r.Get("/", s.handleListExports)
			r.Get("/{id}", s.handleGetExport)
			r.Delete("/{id}", s.handleDeleteExport)
			r.Get("/{id}/download", s.handleDownloadExport)
			r.Post("/{id}/transfer", s.handleTransferExport)
		})

		r.Route("/formats/{recordType}", func(r chi.Router) {
			r.Get("/", s.handleListFormats)
			r.Post("/", s.handleSaveFormat)
			r.Put("/active", s.handleSetActiveFormat)
			r.Delete("/{key}", s.handleDeleteFormat)
		})
	})

	return r
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.router,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning || s.httpServer == nil {
		return nil
	}

	s.logger.Info("Shutting down API server", "timeout", s.config.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.isRunning = false
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
