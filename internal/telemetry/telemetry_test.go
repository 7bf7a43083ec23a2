package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/renewaldesk/internal/config"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, ""},
		{"enabled defaults", func(c *Config) { c.Enabled = true }, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"remote insecure", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, "non-loopback"},
		{"remote tls", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		}, ""},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, "protocol"},
		{"bad sampling", func(c *Config) { c.Enabled = true; c.SampleRate = 1.5 }, "sample rate"},
		{"metrics off", func(c *Config) { c.Enabled = true; c.MetricsInterval = 0 }, ""},
		{"no shutdown timeout", func(c *Config) { c.Enabled = true; c.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"ipv6 loopback", func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }, ""},
		{"loopback with scheme", func(c *Config) { c.Enabled = true; c.Endpoint = "http://127.0.0.2:4318" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		Endpoint:        "127.0.0.1:4318",
		Protocol:        ProtocolHTTP,
		Insecure:        true,
		ServiceName:     "renewaldesk-test",
	}, "abc123")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "127.0.0.1:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "renewaldesk-test", cfg.ServiceName)
	assert.Equal(t, "abc123", cfg.ServiceVersion)
	require.NoError(t, cfg.Validate())

	def := FromObservability(config.ObservabilityConfig{}, "")
	assert.False(t, def.Enabled)
	assert.Equal(t, "dev", def.ServiceVersion)
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Healthy)
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_Enabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "127.0.0.1:1"
	cfg.ShutdownTimeout = 100 * time.Millisecond

	// Exporters connect lazily, so an unreachable collector still starts.
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)
	assert.NotNil(t, tel.LoggerProvider())

	_ = tel.Shutdown(context.Background())
	assert.False(t, tel.IsEnabled())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Protocol = "udp"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.True(t, tel.Health().Degraded)
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("http://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("otel:4318"))
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "retrieval")
	span.SetAttributes(
		attribute.String("vendor_id", "vendor_123"),
		attribute.Bool("contract_present", true),
		attribute.Int("documents", 3),
	)
	span.End()

	tt.AssertSpanExists(t, "retrieval")
	tt.AssertSpanAttribute(t, "retrieval", "vendor_id", "vendor_123")
	tt.AssertSpanAttribute(t, "retrieval", "contract_present", true)
	tt.AssertSpanAttribute(t, "retrieval", "documents", int64(3))
	tt.AssertNoSpan(t, "llm_call")
	assert.Equal(t, []string{"retrieval"}, tt.SpanNames())

	tt.Reset()
	assert.Empty(t, tt.Spans())

	counter, err := tt.Meter("test").Int64Counter("briefs")
	require.NoError(t, err)
	counter.Add(ctx, 1)
	rm, err := tt.CollectMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "briefs", rm.ScopeMetrics[0].Metrics[0].Name)
}
