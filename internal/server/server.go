package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/legallens/internal/ai"
	"github.com/spigell/legallens/internal/document"
	"github.com/spigell/legallens/internal/metrics"
	"github.com/spigell/legallens/internal/pipeline"
	"github.com/spigell/legallens/internal/tender"
)

const (
	DefaultListen         = ":8080"
	DefaultRequestTimeout = 3 * time.Minute
	shutdownTimeout       = 10 * time.Second
	// multipart overhead allowed on top of the document size limit
	formOverhead = 1 << 20
)

type Config struct {
	Listen         string        `mapstructure:"listen"`
	AllowedOrigins []string      `mapstructure:"allowed-origins"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
}

// Analyzer runs one analysis. *pipeline.Pipeline satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req tender.Request, in document.Input) (*pipeline.Run, error)
}

type Deps struct {
	Pipeline  Analyzer
	Assistant ai.Assistant
	Solutions []tender.Solution
	// MaxDocumentSize bounds multipart uploads.
	MaxDocumentSize int64
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer
}

type Server struct {
	cfg    Config
	deps   Deps
	router *chi.Mux
	logger *zap.Logger
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if deps.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if deps.MaxDocumentSize <= 0 {
		deps.MaxDocumentSize = document.DefaultMaxSize
	}
	if len(deps.Solutions) == 0 {
		deps.Solutions = tender.DefaultSolutions()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
		logger: deps.Logger,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Get("/solutions", s.handleSolutions)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/assistant", s.handleAssistant)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("listen", s.cfg.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
