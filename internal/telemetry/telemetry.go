package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the SDK providers behind the orchestrator spans and the
// HTTP metrics middleware. An exporter that cannot be built degrades the
// instance instead of failing startup.
type Telemetry struct {
	cfg *Config
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider

	closed   atomic.Bool
	degraded atomic.Pointer[string]
}

// New builds the providers and installs them globally. With telemetry
// disabled it installs nothing and every accessor falls back to the
// global no-op providers.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)
	if exp, err := newSpanExporter(ctx, cfg); err != nil {
		t.degrade("trace exporter: %v", err)
	} else {
		t.tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(rootSampler(cfg.SampleRate)),
		)
		otel.SetTracerProvider(t.tp)
	}

	if cfg.MetricsInterval > 0 {
		if exp, err := newMetricExporter(ctx, cfg); err != nil {
			t.degrade("metric exporter: %v", err)
		} else {
			t.mp = sdkmetric.NewMeterProvider(
				sdkmetric.WithResource(res),
				sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.MetricsInterval))),
			)
			otel.SetMeterProvider(t.mp)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return t, nil
}

func (t *Telemetry) degrade(format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	t.degraded.Store(&reason)
}

// Tracer returns a tracer from the SDK provider, or the global one when
// there is none.
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if t == nil || t.tp == nil {
		return otel.Tracer(name, opts...)
	}
	return t.tp.Tracer(name, opts...)
}

// Meter returns a meter from the SDK provider, or the global one when
// there is none.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.mp == nil {
		return otel.Meter(name, opts...)
	}
	return t.mp.Meter(name, opts...)
}

// LoggerProvider returns the provider for the zap bridge: the global
// provider when telemetry is enabled, nil otherwise.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || !t.cfg.Enabled {
		return nil
	}
	return global.GetLoggerProvider()
}

// IsEnabled reports whether telemetry is on and not shut down.
func (t *Telemetry) IsEnabled() bool {
	return t != nil && t.cfg.Enabled && !t.closed.Load()
}

// ForceFlush exports everything buffered so far.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tp != nil {
		errs = append(errs, wrap("flush traces", t.tp.ForceFlush(ctx)))
	}
	if t.mp != nil {
		errs = append(errs, wrap("flush metrics", t.mp.ForceFlush(ctx)))
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops both providers. Without a deadline on ctx
// the configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownTimeout)
		defer cancel()
	}
	t.closed.Store(true)

	var errs []error
	if t.tp != nil {
		errs = append(errs, wrap("shutdown traces", t.tp.Shutdown(ctx)))
	}
	if t.mp != nil {
		errs = append(errs, wrap("shutdown metrics", t.mp.Shutdown(ctx)))
	}
	return errors.Join(errs...)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// HealthStatus is reported by Health. Reason is the last degradation cause.
type HealthStatus struct {
	Healthy  bool
	Degraded bool
	Reason   string
}

// Health reports whether the instance is still running and whether any
// exporter failed to start. A nil instance is degraded.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true, Reason: "telemetry not initialized"}
	}
	h := HealthStatus{Healthy: !t.closed.Load()}
	if reason := t.degraded.Load(); reason != nil {
		h.Degraded = true
		h.Reason = *reason
	}
	return h
}
