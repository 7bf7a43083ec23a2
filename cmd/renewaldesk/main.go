// Renewaldesk serves renewal briefs over HTTP.
//
// Configuration is read from ~/.config/renewaldesk/config.yaml (or the
// file named by -config) and RENEWALDESK_ environment variables. See
// internal/config for the keys.
//
// Usage:
//
//	# Start with the mock provider
//	renewaldesk
//
//	# Use a local Ollama model and a daily budget
//	RENEWALDESK_LLM_PROVIDER=ollama RENEWALDESK_BUDGET_DAILY_USD=5 renewaldesk
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/renewaldesk/internal/config"
	httpserver "github.com/fyrsmithlabs/renewaldesk/internal/http"
	"github.com/fyrsmithlabs/renewaldesk/internal/logging"
	"github.com/fyrsmithlabs/renewaldesk/internal/services"
	"github.com/fyrsmithlabs/renewaldesk/internal/synthesis"
	"github.com/fyrsmithlabs/renewaldesk/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  renewaldesk [-config path]   Start the server\n")
			fmt.Fprintf(os.Stderr, "  renewaldesk version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("renewaldesk\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the server and blocks until ctx is cancelled.
//
// Startup order:
//  1. Load and validate configuration
//  2. Telemetry, then the logger bridged onto its log provider
//  3. Services (store, audit sinks, LLM transport, orchestrator)
//  4. Prompt template watcher, when enabled
//  5. HTTP server, shut down gracefully on cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	commit := cfg.Server.CommitSHA
	if commit == "" || commit == "dev" {
		if gitCommit != "unknown" {
			commit = gitCommit
		}
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, commit))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(ctx, "Starting renewaldesk",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("env", cfg.Server.Env),
		zap.String("commit", commit),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Float64("daily_budget_usd", cfg.Budget.DailyUSD),
		zap.Int("max_tool_calls", cfg.Agent.MaxToolCalls),
		zap.Int("max_tokens", cfg.Agent.MaxTokens),
		zap.String("prompt_version", cfg.Agent.PromptVersion),
		zap.Bool("telemetry_enabled", tel.IsEnabled()),
	)

	reg, err := services.New(ctx, cfg, services.Options{
		Logger: logger,
		Tracer: tel.Tracer(synthesis.InstrumentationName),
	})
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn(context.Background(), "closing services", zap.Error(err))
		}
	}()

	if cfg.Agent.WatchPrompt {
		go func() {
			if err := reg.Prompts().Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn(ctx, "prompt watcher stopped", zap.Error(err))
			}
		}()
	}

	httpMetrics, err := httpserver.NewHTTPMetrics(tel.Meter(httpserver.InstrumentationName))
	if err != nil {
		return err
	}

	deps := httpserver.Deps{
		Briefs:  reg.Briefs(),
		Store:   reg.Store(),
		Traces:  reg.Traces(),
		Clients: reg.Clients(),
		Lister:  reg.Lister(),
		API:     reg.Metrics(),
		OTEL:    httpMetrics,
	}
	if h := reg.History(); h != nil {
		deps.History = h
	}

	srv, err := httpserver.NewServer(deps, logger.Underlying().Named("http"), &httpserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		CommitSHA:       commit,
		ExamplesDir:     cfg.Storage.ExamplesDir,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	logger.Info(ctx, "Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	return srv.Start(ctx)
}

// initLogger builds the zap logger, bridging to the OTEL log provider
// when telemetry is enabled.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.FromLogConfig(cfg.Log.Level, cfg.Log.Format, tel.IsEnabled())
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(logCfg, tel.LoggerProvider())
}
