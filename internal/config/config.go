// Package config provides configuration loading for renewaldesk.
//
// Values come from hardcoded defaults, an optional YAML file and
// RENEWALDESK_ prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete renewaldesk configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	LLM           LLMConfig           `koanf:"llm"`
	Budget        BudgetConfig        `koanf:"budget"`
	Agent         AgentConfig         `koanf:"agent"`
	Guard         GuardConfig         `koanf:"guard"`
	Storage       StorageConfig       `koanf:"storage"`
	Audit         AuditConfig         `koanf:"audit"`
	History       HistoryConfig       `koanf:"history"`
	Scrub         ScrubConfig         `koanf:"scrub"`
	Log           LogConfig           `koanf:"log"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CommitSHA       string        `koanf:"commit_sha"`
	Env             string        `koanf:"env"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig selects and tunes the chat-completion provider.
type LLMConfig struct {
	Provider        string        `koanf:"provider"`
	BaseURL         string        `koanf:"base_url"`
	Model           string        `koanf:"model"`
	MaxOutputTokens int           `koanf:"max_output_tokens"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	RateLimit       float64       `koanf:"rate_limit"`
	Burst           int           `koanf:"burst"`
	MaxRetries      int           `koanf:"max_retries"`
}

// BudgetConfig holds the daily LLM spend cap. DailyUSD <= 0 disables the cap.
type BudgetConfig struct {
	DailyUSD           float64 `koanf:"daily_usd"`
	CostPer1KTokensUSD float64 `koanf:"cost_per_1k_tokens_usd"`
}

// AgentConfig holds orchestrator limits and prompt settings.
type AgentConfig struct {
	MaxToolCalls  int    `koanf:"max_tool_calls"`
	MaxTokens     int    `koanf:"max_tokens"`
	PromptVersion string `koanf:"prompt_version"`
	PromptPath    string `koanf:"prompt_path"`
	WatchPrompt   bool   `koanf:"watch_prompt"`
}

// GuardConfig overrides the injection pattern list. Empty keeps the built-in list.
type GuardConfig struct {
	Patterns []string `koanf:"patterns"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Backend        string `koanf:"backend"`
	DataDir        string `koanf:"data_dir"`
	ExamplesDir    string `koanf:"examples_dir"`
	Bucket         string `koanf:"bucket"`
	MinioEndpoint  string `koanf:"minio_endpoint"`
	MinioAccessKey Secret `koanf:"minio_access_key"`
	MinioSecretKey Secret `koanf:"minio_secret_key"`
	MinioUseSSL    bool   `koanf:"minio_use_ssl"`
}

// AuditConfig holds audit trace retention and fan-out settings.
type AuditConfig struct {
	Capacity int    `koanf:"capacity"`
	NATSURL  string `koanf:"nats_url"`
	Subject  string `koanf:"subject"`
}

// HistoryConfig enables the SQLite audit history when Path is set.
type HistoryConfig struct {
	Path string `koanf:"path"`
}

// ScrubConfig controls evidence secret redaction.
type ScrubConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// LogConfig holds the logging level and format.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"`
	Insecure        bool   `koanf:"insecure"`
	ServiceName     string `koanf:"service_name"`
}

// Default returns the configuration used when no file or env override is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			CommitSHA:       "dev",
			Env:             "local",
		},
		LLM: LLMConfig{
			Provider:        "mock",
			BaseURL:         "http://localhost:11434",
			Model:           "llama3.1:8b",
			MaxOutputTokens: 800,
			RequestTimeout:  60 * time.Second,
			RateLimit:       2,
			Burst:           2,
			MaxRetries:      2,
		},
		Budget: BudgetConfig{
			CostPer1KTokensUSD: 0.0001,
		},
		Agent: AgentConfig{
			MaxToolCalls:  8,
			MaxTokens:     6000,
			PromptVersion: "v1",
			PromptPath:    "prompts/base.md",
		},
		Storage: StorageConfig{
			Backend:     "fs",
			DataDir:     ".data",
			ExamplesDir: "examples",
			Bucket:      "renewal-desk",
		},
		Audit: AuditConfig{
			Capacity: 200,
			Subject:  "renewaldesk.audit",
		},
		Scrub: ScrubConfig{Enabled: true},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "renewaldesk",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(c.LLM.Provider)) {
	case "mock", "ollama":
	default:
		return fmt.Errorf("unsupported llm provider %q (must be mock or ollama)", c.LLM.Provider)
	}
	if c.LLM.MaxOutputTokens <= 0 {
		return errors.New("llm max_output_tokens must be positive")
	}
	if c.LLM.RequestTimeout <= 0 {
		return errors.New("llm request_timeout must be positive")
	}
	if c.LLM.RateLimit < 0 || c.LLM.Burst < 0 || c.LLM.MaxRetries < 0 {
		return errors.New("llm rate_limit, burst and max_retries must not be negative")
	}

	if c.Budget.CostPer1KTokensUSD < 0 {
		return errors.New("budget cost_per_1k_tokens_usd must not be negative")
	}
	if c.Agent.MaxToolCalls <= 0 {
		return errors.New("agent max_tool_calls must be positive")
	}

	switch c.Storage.Backend {
	case "fs":
		if c.Storage.DataDir == "" {
			return errors.New("storage data_dir required for fs backend")
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" {
			return errors.New("storage minio_endpoint required for minio backend")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage bucket required for minio backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q (must be fs or minio)", c.Storage.Backend)
	}

	if c.Audit.Capacity <= 0 {
		return errors.New("audit capacity must be positive")
	}
	if c.Audit.NATSURL != "" && c.Audit.Subject == "" {
		return errors.New("audit subject required when nats_url is set")
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", c.Log.Format)
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		if c.Observability.Endpoint == "" {
			return errors.New("otlp endpoint required when telemetry is enabled")
		}
		switch c.Observability.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("unsupported otlp protocol %q", c.Observability.Protocol)
		}
	}

	return nil
}
