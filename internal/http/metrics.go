package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the meter scope of the HTTP instruments.
const InstrumentationName = "github.com/fyrsmithlabs/renewaldesk/internal/http"

// Attribute keys follow the OpenTelemetry HTTP server conventions.
const (
	attrMethod = attribute.Key("http.request.method")
	attrRoute  = attribute.Key("http.route")
	attrStatus = attribute.Key("http.response.status_code")
)

// APIRecorder receives one observation per request. *metrics.Metrics
// implements it.
type APIRecorder interface {
	RecordAPIRequest(path, method string, status int, d time.Duration)
}

// HTTPMetrics records OpenTelemetry request metrics. It complements the
// Prometheus api_* series with response sizes and in-flight requests.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	size     metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	var m HTTPMetrics
	var errs [4]error
	m.requests, errs[0] = meter.Int64Counter("renewaldesk.http.requests",
		metric.WithDescription("HTTP requests by method, route and status"),
		metric.WithUnit("{request}"))
	// Brief generation with a model in the loop can take tens of seconds.
	m.duration, errs[1] = meter.Float64Histogram("renewaldesk.http.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60))
	m.size, errs[2] = meter.Int64Histogram("renewaldesk.http.response.size",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(256, 1024, 4096, 16384, 65536, 262144))
	m.inFlight, errs[3] = meter.Int64UpDownCounter("renewaldesk.http.active_requests",
		metric.WithDescription("In-flight HTTP requests"),
		metric.WithUnit("{request}"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, fmt.Errorf("creating http instruments: %w", err)
	}
	return &m, nil
}

// Middleware records one observation per request.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			m.inFlight.Add(ctx, 1)
			defer m.inFlight.Add(ctx, -1)

			err := next(c)

			attrs := metric.WithAttributes(
				attrMethod.String(c.Request().Method),
				attrRoute.String(normalizePath(c.Path())),
				attrStatus.Int(responseStatus(c, err)),
			)
			m.requests.Add(ctx, 1, attrs)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.size.Record(ctx, c.Response().Size, attrs)
			return err
		}
	}
}

// prometheusMiddleware feeds api_requests_total and
// api_request_latency_seconds.
func prometheusMiddleware(rec APIRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			rec.RecordAPIRequest(normalizePath(c.Path()), c.Request().Method, responseStatus(c, err), time.Since(start))
			return err
		}
	}
}

// responseStatus returns the status the client will see. Handler errors
// are written by the error handler after middleware returns, so the
// response status is still unset for them.
func responseStatus(c echo.Context, err error) int {
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he.Code
		}
		return http.StatusInternalServerError
	}
	return c.Response().Status
}

// normalizePath keeps metric labels bounded. Echo reports the route
// template (/debug/trace/:request_id), so only unmatched requests need
// folding.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
