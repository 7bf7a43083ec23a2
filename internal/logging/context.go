package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	vendorIDKey
)

const maxIDLen = 128

// idPattern matches the ids accepted for requests and vendors. The same
// rule keeps vendor ids safe as object-store path segments.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ContextFields returns the span, request and vendor fields found in ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := VendorIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("vendor.id", id))
	}
	return fields
}

func checkID(kind, id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%s is empty", kind)
	case len(id) > maxIDLen:
		return fmt.Errorf("%s longer than %d bytes", kind, maxIDLen)
	case !utf8.ValidString(id), !idPattern.MatchString(id):
		return fmt.Errorf("%s %q may only contain letters, digits, '.', '_' and '-'", kind, id)
	}
	return nil
}

// ValidID reports whether WithRequestID and WithVendorID accept id.
func ValidID(id string) bool {
	return checkID("id", id) == nil
}

// WithRequestID returns ctx carrying a request id. It panics on an id
// ValidID rejects; callers validate first.
func WithRequestID(ctx context.Context, id string) context.Context {
	if err := checkID("request id", id); err != nil {
		panic("logging: " + err.Error())
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithVendorID returns ctx carrying a vendor id. It panics on an id
// ValidID rejects; callers validate first.
func WithVendorID(ctx context.Context, id string) context.Context {
	if err := checkID("vendor id", id); err != nil {
		panic("logging: " + err.Error())
	}
	return context.WithValue(ctx, vendorIDKey, id)
}

// VendorIDFromContext returns the vendor id in ctx, or "".
func VendorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(vendorIDKey).(string)
	return id
}
