package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/renewaldesk/internal/audit"
	"github.com/fyrsmithlabs/renewaldesk/internal/budget"
	"github.com/fyrsmithlabs/renewaldesk/internal/config"
	"github.com/fyrsmithlabs/renewaldesk/internal/guard"
	"github.com/fyrsmithlabs/renewaldesk/internal/history"
	"github.com/fyrsmithlabs/renewaldesk/internal/llm"
	"github.com/fyrsmithlabs/renewaldesk/internal/logging"
	"github.com/fyrsmithlabs/renewaldesk/internal/metrics"
	"github.com/fyrsmithlabs/renewaldesk/internal/prompts"
	"github.com/fyrsmithlabs/renewaldesk/internal/scrub"
	"github.com/fyrsmithlabs/renewaldesk/internal/store"
	"github.com/fyrsmithlabs/renewaldesk/internal/synthesis"
	"github.com/fyrsmithlabs/renewaldesk/internal/tools"
)

// Storage backends.
const (
	BackendFS    = "fs"
	BackendMinio = "minio"
)

const natsClientName = "renewaldesk"

// Options adjusts how New wires the registry.
type Options struct {
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Recorder synthesis.Recorder

	// Local skips the NATS and history sinks. The CLI uses it for eval
	// runs so golden cases never reach shared audit consumers.
	Local bool
}

// Registry holds the wired collaborators. Close releases the ones that
// hold connections or files.
type Registry struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics

	store   store.Store
	traces  *audit.Store
	history *history.Store
	nats    *nats.Conn

	clients *llm.ClientPool
	client  *llm.OllamaClient
	prompts *prompts.Loader
	ledger  *budget.Ledger
	briefs  *synthesis.Orchestrator
}

// New builds a registry from cfg. On error everything opened so far is
// closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *Registry, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	r := &Registry{cfg: cfg, logger: opts.Logger, metrics: opts.Metrics}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.metrics == nil {
		r.metrics = metrics.Default()
	}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	if r.store, err = newStore(ctx, cfg.Storage); err != nil {
		return nil, err
	}
	if r.traces, err = audit.NewStore(cfg.Audit.Capacity); err != nil {
		return nil, fmt.Errorf("creating trace store: %w", err)
	}

	sinks := []audit.Sink{r.traces}
	if !opts.Local {
		if cfg.History.Path != "" {
			if r.history, err = history.Open(cfg.History.Path); err != nil {
				return nil, fmt.Errorf("opening history: %w", err)
			}
			sinks = append(sinks, r.history)
		}
		if cfg.Audit.NATSURL != "" {
			if r.nats, err = audit.Connect(cfg.Audit.NATSURL, natsClientName); err != nil {
				return nil, err
			}
			sinks = append(sinks, audit.NewNATSPublisher(r.nats, cfg.Audit.Subject))
		}
	}

	scrubber, err := scrub.New(scrub.Options{
		Enabled:       cfg.Scrub.Enabled,
		AllowlistPath: cfg.Scrub.AllowlistPath,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scrubber: %w", err)
	}

	if r.clients, err = llm.NewClientPool(llmConfig(cfg.LLM), 0); err != nil {
		return nil, fmt.Errorf("creating llm client pool: %w", err)
	}
	var chat llm.ChatClient
	if llm.NormalizeProvider(cfg.LLM.Provider) == llm.ProviderOllama {
		if r.client, err = r.clients.Get(""); err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		chat = r.client
	}

	zl := r.logger.Underlying()
	r.prompts = prompts.NewLoader(cfg.Agent.PromptPath, zl.Named("prompts"))
	r.ledger = budget.NewLedger()

	recorder := opts.Recorder
	if recorder == nil {
		recorder = r.metrics
	}
	orchOpts := []synthesis.Option{
		synthesis.WithLedger(r.ledger),
		synthesis.WithPolicy(tools.NewPolicy(cfg.Agent.MaxToolCalls)),
		synthesis.WithGuard(guard.New(cfg.Guard.Patterns...)),
		synthesis.WithScrubber(scrubber),
		synthesis.WithSystemPrompt(r.prompts),
		synthesis.WithRecorder(recorder),
		synthesis.WithTraceSink(audit.NewFanout(zl.Named("audit"), sinks...)),
		synthesis.WithLogger(r.logger.Named("synthesis")),
	}
	if chat != nil {
		orchOpts = append(orchOpts, synthesis.WithClient(chat))
	}
	if opts.Tracer != nil {
		orchOpts = append(orchOpts, synthesis.WithTracer(opts.Tracer))
	}

	r.briefs, err = synthesis.New(synthesis.Config{
		Provider:           cfg.LLM.Provider,
		Model:              cfg.LLM.Model,
		MaxOutputTokens:    cfg.LLM.MaxOutputTokens,
		DailyBudgetUSD:     cfg.Budget.DailyUSD,
		CostPer1KTokensUSD: cfg.Budget.CostPer1KTokensUSD,
	}, orchOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	r.logger.Info(ctx, "services initialized",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("bucket", r.store.Bucket()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("history_enabled", r.history != nil),
		zap.Bool("nats_enabled", r.nats != nil),
		zap.Bool("prompt_template_loaded", r.prompts.Loaded()),
	)
	return r, nil
}

func newStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFS:
		return store.NewFSStore(cfg.DataDir, cfg.Bucket), nil
	case BackendMinio:
		s, err := store.NewMinioStore(ctx, store.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey.Value(),
			SecretKey: cfg.MinioSecretKey.Value(),
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("creating minio store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func llmConfig(c config.LLMConfig) llm.Config {
	return llm.Config{
		Provider:        c.Provider,
		BaseURL:         c.BaseURL,
		Model:           c.Model,
		MaxOutputTokens: c.MaxOutputTokens,
		Timeout:         c.RequestTimeout,
		RateLimit:       c.RateLimit,
		Burst:           c.Burst,
		MaxRetries:      c.MaxRetries,
	}
}

func (r *Registry) Config() *config.Config          { return r.cfg }
func (r *Registry) Metrics() *metrics.Metrics       { return r.metrics }
func (r *Registry) Store() store.Store              { return r.store }
func (r *Registry) Traces() *audit.Store            { return r.traces }
func (r *Registry) Clients() *llm.ClientPool        { return r.clients }
func (r *Registry) Prompts() *prompts.Loader        { return r.prompts }
func (r *Registry) Ledger() *budget.Ledger          { return r.ledger }
func (r *Registry) Briefs() *synthesis.Orchestrator { return r.briefs }
func (r *Registry) History() *history.Store         { return r.history }
func (r *Registry) NATS() *nats.Conn                { return r.nats }
func (r *Registry) OllamaClient() *llm.OllamaClient { return r.client }

// Lister returns the model lister behind /llm/health, or nil for the
// mock provider.
func (r *Registry) Lister() llm.ModelLister {
	if r.client == nil {
		return nil
	}
	return r.client
}

// Close drains NATS and closes the history database.
func (r *Registry) Close() error {
	var errs []error
	if r.nats != nil {
		if err := r.nats.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("draining nats: %w", err))
		}
		r.nats = nil
	}
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing history: %w", err))
		}
		r.history = nil
	}
	return errors.Join(errs...)
}
