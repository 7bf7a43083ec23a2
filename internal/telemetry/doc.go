// Package telemetry sets up OpenTelemetry tracing and metrics export for
// renewaldesk over OTLP, grpc or http/protobuf.
//
// The orchestrator opens one span per pipeline stage (retrieval, llm_call,
// validation, response_build) and the HTTP layer records request metrics.
// When telemetry is disabled nothing is installed and the global no-op
// providers answer, so instrumented code never branches on it.
//
// Tests use NewTestTelemetry, which records spans in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	orch, _ := synthesis.New(cfg, synthesis.WithTracer(tt.Tracer(synthesis.InstrumentationName)))
//	...
//	tt.AssertSpanExists(t, "validation")
package telemetry
