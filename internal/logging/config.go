package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"
)

// maxPatternLen bounds redaction patterns so a bad config cannot stall
// every log write.
const maxPatternLen = 200

// Config holds logging configuration.
type Config struct {
	Level  zapcore.Level
	Format string // "json" or "console"

	// Stdout and OTEL select the sinks. At least one must be set.
	Stdout bool
	OTEL   bool

	Caller     bool
	StackLevel zapcore.Level

	Sampling  Sampling
	Fields    map[string]string
	Redaction Redaction
}

// Sampling limits repeated entries per tick. Levels missing from Rates,
// and everything at Error or above, are never sampled.
type Sampling struct {
	Enabled bool
	Tick    time.Duration
	Rates   map[zapcore.Level]Rate
}

// Rate keeps the first First entries with the same message in a tick,
// then every Thereafter-th one. Thereafter 0 drops the rest.
type Rate struct {
	First      int
	Thereafter int
}

// Redaction lists field names whose values are never written and value
// patterns that mark a string as sensitive wherever it appears.
type Redaction struct {
	Keys     []string
	Patterns []string
}

// defaultRedactedKeys covers credentials plus the two fields that could
// carry vendor document text.
var defaultRedactedKeys = []string{
	"password", "secret", "token", "api_key", "authorization",
	"credential", "private_key", "access_key", "secret_key",
	"evidence", "prompt",
}

var defaultRedactedPatterns = []string{
	`(?i)bearer\s+\S+`,
	`(?i)api[_-]?key[=:]\s*\S+`,
}

// NewDefaultConfig returns JSON logging at info to stdout with sampling
// and redaction on.
func NewDefaultConfig() *Config {
	return &Config{
		Level:      zapcore.InfoLevel,
		Format:     "json",
		Stdout:     true,
		Caller:     true,
		StackLevel: zapcore.ErrorLevel,
		Sampling: Sampling{
			Enabled: true,
			Tick:    time.Second,
			Rates: map[zapcore.Level]Rate{
				zapcore.DebugLevel: {First: 10},
				zapcore.InfoLevel:  {First: 100, Thereafter: 10},
				zapcore.WarnLevel:  {First: 100, Thereafter: 100},
			},
		},
		Fields: map[string]string{"service": "renewaldesk"},
		Redaction: Redaction{
			Keys:     append([]string(nil), defaultRedactedKeys...),
			Patterns: append([]string(nil), defaultRedactedPatterns...),
		},
	}
}

// FromLogConfig builds a logging config from the daemon's level and
// format settings. otel adds the OTEL bridge as a second sink.
func FromLogConfig(level, format string, otel bool) (*Config, error) {
	lvl, err := LevelFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := NewDefaultConfig()
	cfg.Level = lvl
	if format != "" {
		cfg.Format = format
	}
	cfg.OTEL = otel
	return cfg, nil
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "json" && c.Format != "console" {
		errs = append(errs, fmt.Errorf("format must be json or console, got %q", c.Format))
	}
	if !c.Stdout && !c.OTEL {
		errs = append(errs, errors.New("no log output enabled"))
	}
	if c.Sampling.Enabled && c.Sampling.Tick <= 0 {
		errs = append(errs, errors.New("sampling tick must be positive"))
	}
	for _, p := range c.Redaction.Patterns {
		if _, err := compilePattern(p); err != nil {
			errs = append(errs, err)
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			errs = append(errs, fmt.Errorf("constant field %q=%q must have a key and a value", k, v))
		}
	}
	return errors.Join(errs...)
}

func compilePattern(p string) (*regexp.Regexp, error) {
	if len(p) > maxPatternLen {
		return nil, fmt.Errorf("redaction pattern longer than %d chars", maxPatternLen)
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
	}
	return re, nil
}
