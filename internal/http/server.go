// Package http serves the renewal desk API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/renewaldesk/internal/audit"
	"github.com/fyrsmithlabs/renewaldesk/internal/llm"
	"github.com/fyrsmithlabs/renewaldesk/internal/store"
	"github.com/fyrsmithlabs/renewaldesk/internal/synthesis"
)

// DefaultDemoVendor is the vendor used by the demo endpoint when none is given.
const DefaultDemoVendor = "vendor_123"

// maxUploadBytes caps each ingested document.
const maxUploadBytes = 10 << 20

// TraceLookup finds audit records by request id.
type TraceLookup interface {
	Get(requestID string) (audit.Record, bool)
}

// HistoryLister lists persisted audit records for a vendor.
type HistoryLister interface {
	List(ctx context.Context, vendorID string, limit int) ([]audit.Record, error)
}

// Deps are the collaborators behind the handlers. Briefs, Store and
// Traces are required.
type Deps struct {
	Briefs  *synthesis.Orchestrator
	Store   store.Store
	Traces  TraceLookup
	History HistoryLister

	// Clients builds Ollama clients for per-request overrides. Without it
	// only the mock provider can be selected per request.
	Clients *llm.ClientPool

	// Lister backs /llm/health for the default configuration.
	Lister llm.ModelLister

	API      APIRecorder
	OTEL     *HTTPMetrics
	Gatherer prometheus.Gatherer
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	CommitSHA       string
	ExamplesDir     string
	ShutdownTimeout time.Duration
}

// Server provides the HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config *Config
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Briefs == nil {
		return nil, fmt.Errorf("brief orchestrator cannot be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if deps.Traces == nil {
		return nil, fmt.Errorf("trace lookup cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "0.0.0.0", Port: 8080, CommitSHA: "dev", ExamplesDir: "examples"}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if deps.API != nil {
		e.Use(prometheusMiddleware(deps.API))
	}
	if deps.OTEL != nil {
		e.Use(deps.OTEL.Middleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", responseStatus(c, err)),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	s.echo.POST("/ingest", s.handleIngest)
	s.echo.POST("/renewal-brief", s.handleRenewalBrief)
	s.echo.GET("/demo/renewal-brief", s.handleDemoBrief)
	s.echo.GET("/llm/health", s.handleLLMHealth)
	s.echo.GET("/debug/trace/:request_id", s.handleTrace)
	s.echo.GET("/vendors/:vendor_id/history", s.handleHistory)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// the configured timeout. It returns http.ErrServerClosed after a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
