package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/renewaldesk/internal/audit"
	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
	"github.com/fyrsmithlabs/renewaldesk/internal/budget"
	"github.com/fyrsmithlabs/renewaldesk/internal/evidence"
	"github.com/fyrsmithlabs/renewaldesk/internal/guard"
	"github.com/fyrsmithlabs/renewaldesk/internal/llm"
	"github.com/fyrsmithlabs/renewaldesk/internal/logging"
	"github.com/fyrsmithlabs/renewaldesk/internal/prompts"
	"github.com/fyrsmithlabs/renewaldesk/internal/scrub"
	"github.com/fyrsmithlabs/renewaldesk/internal/tools"
)

// InstrumentationName is the tracer scope of the orchestrator spans.
const InstrumentationName = "github.com/fyrsmithlabs/renewaldesk/internal/synthesis"

// Span names.
const (
	SpanRetrieval     = "retrieval"
	SpanLLMCall       = "llm_call"
	SpanValidation    = "validation"
	SpanResponseBuild = "response_build"
)

// requiredSteps must pass the tool policy for a request to complete.
var requiredSteps = []string{
	tools.ExtractContractFields,
	tools.SummarizeInvoices,
	tools.SummarizeUsage,
	tools.SynthesizeBrief,
	tools.BuildNegotiationPlan,
	tools.DraftEmail,
}

// Recorder receives request counters. *metrics.Metrics implements it.
type Recorder interface {
	RecordAgentCompletion(status string)
	RecordAgentTokens(direction string, n int)
	RecordLLMTokens(direction string, n int)
	RecordLLMError(reason string)
	RecordValidationFailure(stage string)
	RecordCitationCoverage(ratio float64)
	RecordLLMLatency(provider string, d time.Duration)
}

// TraceSink receives one audit record per request. It must not block on
// slow backends or panic back into the orchestrator.
type TraceSink interface {
	RecordTrace(ctx context.Context, rec audit.Record)
}

// SystemPrompter supplies the system instruction of the synthesis call.
type SystemPrompter interface {
	System() string
}

type staticPrompt string

func (s staticPrompt) System() string { return string(s) }

type nopRecorder struct{}

func (nopRecorder) RecordAgentCompletion(string)           {}
func (nopRecorder) RecordAgentTokens(string, int)          {}
func (nopRecorder) RecordLLMTokens(string, int)            {}
func (nopRecorder) RecordLLMError(string)                  {}
func (nopRecorder) RecordValidationFailure(string)         {}
func (nopRecorder) RecordCitationCoverage(float64)         {}
func (nopRecorder) RecordLLMLatency(string, time.Duration) {}

type nopSink struct{}

func (nopSink) RecordTrace(context.Context, audit.Record) {}

// Config selects the provider and spend limits.
type Config struct {
	Provider           string
	Model              string
	MaxOutputTokens    int
	DailyBudgetUSD     float64
	CostPer1KTokensUSD float64
}

// LLMBacked reports whether synthesis calls a model.
func (c Config) LLMBacked() bool {
	return llm.NormalizeProvider(c.Provider) == llm.ProviderOllama
}

// Orchestrator generates renewal briefs. It is safe for concurrent use;
// all per-request state lives in a run.
type Orchestrator struct {
	cfg       Config
	client    llm.ChatClient
	ledger    *budget.Ledger
	policy    *tools.Policy
	guard     *guard.Guard
	extractor *evidence.Extractor
	scrubber  *scrub.Scrubber
	system    SystemPrompter
	recorder  Recorder
	traces    TraceSink
	tracer    trace.Tracer
	logger    *logging.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClient sets the chat client used when the provider is LLM-backed.
func WithClient(c llm.ChatClient) Option {
	return func(o *Orchestrator) { o.client = c }
}

// WithLedger shares a budget ledger across orchestrators.
func WithLedger(l *budget.Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithPolicy sets the tool policy.
func WithPolicy(p *tools.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithGuard sets the injection guard.
func WithGuard(g *guard.Guard) Option {
	return func(o *Orchestrator) { o.guard = g }
}

// WithExtractor sets the contract extractor.
func WithExtractor(e *evidence.Extractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

// WithScrubber redacts secrets from evidence before it is sent to a model.
func WithScrubber(s *scrub.Scrubber) Option {
	return func(o *Orchestrator) { o.scrubber = s }
}

// WithSystemPrompt sets the system instruction source, usually a *prompts.Loader.
func WithSystemPrompt(p SystemPrompter) Option {
	return func(o *Orchestrator) { o.system = p }
}

// WithRecorder sets the counter sink.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithTraceSink sets the audit sink.
func WithTraceSink(s TraceSink) Option {
	return func(o *Orchestrator) { o.traces = s }
}

// WithTracer sets the tracer for the request spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock sets the time source for audit timestamps and latencies.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator sets the request id generator.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// New creates an orchestrator. Unset collaborators get working defaults:
// an isolated ledger, the default tool policy, guard and extractor, the
// fallback system prompt, and no-op metrics and audit sinks.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:    cfg,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		tracer: otel.Tracer(InstrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.ledger == nil {
		o.ledger = budget.NewLedger()
	}
	if o.policy == nil {
		o.policy = tools.NewPolicy(tools.DefaultMaxCalls)
	}
	if o.guard == nil {
		o.guard = guard.New()
	}
	if o.extractor == nil {
		o.extractor = evidence.NewExtractor()
	}
	if o.system == nil {
		o.system = staticPrompt(prompts.FallbackSystemPrompt)
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	if o.traces == nil {
		o.traces = nopSink{}
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.cfg.CostPer1KTokensUSD <= 0 {
		o.cfg.CostPer1KTokensUSD = budget.DefaultCostPer1KTokensUSD
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Orchestrator) validate() error {
	if err := llm.ValidateProvider(o.cfg.Provider); err != nil {
		return fmt.Errorf("%w: %q", err, o.cfg.Provider)
	}
	if o.cfg.LLMBacked() && o.client == nil {
		return ErrNoClient
	}
	for _, step := range requiredSteps {
		if !o.policy.Allows(step) {
			return fmt.Errorf("%w: policy must allow %s", tools.ErrToolNotAllowed, step)
		}
	}
	if o.policy.MaxCalls() < len(requiredSteps) {
		return fmt.Errorf("%w: policy allows %d calls, a brief needs %d",
			tools.ErrToolLimit, o.policy.MaxCalls(), len(requiredSteps))
	}
	return nil
}

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// WithLLM returns a copy that uses cfg and client for its model calls and
// shares every other collaborator, including the budget ledger.
func (o *Orchestrator) WithLLM(cfg Config, client llm.ChatClient) (*Orchestrator, error) {
	c := *o
	c.cfg = cfg
	c.client = client
	if c.cfg.CostPer1KTokensUSD <= 0 {
		c.cfg.CostPer1KTokensUSD = o.cfg.CostPer1KTokensUSD
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Generate produces the brief for vendorID from bundle. It returns
// ErrMissingContract when the contract text is empty and
// ErrInjectionDetected when the contract trips the guard; every other
// failure degrades to the heuristic brief.
func (o *Orchestrator) Generate(ctx context.Context, vendorID string, bundle evidence.Bundle) (*brief.Brief, error) {
	_, span := o.tracer.Start(ctx, SpanRetrieval, trace.WithAttributes(
		attribute.String("vendor_id", vendorID),
		attribute.Bool("contract_present", !bundle.Contract.Empty()),
		attribute.Bool("invoices_present", !bundle.Invoices.Empty()),
		attribute.Bool("usage_present", !bundle.Usage.Empty()),
	))
	span.End()

	if bundle.Contract.Empty() {
		return nil, ErrMissingContract
	}

	r := &run{
		o:         o,
		vendorID:  vendorID,
		requestID: o.newID(),
		bundle:    bundle,
		docs:      newDocIDs(bundle),
		gw:        o.policy.Gateway(),
		started:   o.now(),
	}
	if logging.ValidID(r.requestID) {
		ctx = logging.WithRequestID(ctx, r.requestID)
	}
	if logging.ValidID(vendorID) {
		ctx = logging.WithVendorID(ctx, vendorID)
	}
	return r.execute(ctx)
}

// run is the state of one request.
type run struct {
	o         *Orchestrator
	vendorID  string
	requestID string
	bundle    evidence.Bundle
	docs      docIDs
	gw        *tools.Gateway
	started   time.Time
	state     State

	billedCalls int
	llmIn       int
	llmOut      int
	costUSD     float64
}

func (r *run) transition(ctx context.Context, s State) {
	r.o.logger.Debug(ctx, "brief state", zap.Stringer("from", r.state), zap.Stringer("to", s))
	r.state = s
}

func (r *run) execute(ctx context.Context) (*brief.Brief, error) {
	o := r.o

	r.transition(ctx, StateGuardCheck)
	if pattern, hit := o.guard.Match(r.bundle.Contract.Text); hit {
		r.transition(ctx, StateBlocked)
		r.block(ctx, pattern)
		return nil, ErrInjectionDetected
	}

	r.transition(ctx, StateExtracting)
	f := r.extract(ctx)

	var synth *brief.Sections
	if o.cfg.LLMBacked() && o.policy.Allows(tools.SynthesizeBriefLLM) {
		r.transition(ctx, StateSynthesizing)
		synth = r.synthesize(ctx, f)
	}

	var sections brief.Sections
	{
		_, span := o.tracer.Start(ctx, SpanValidation)
		if synth != nil {
			sections = *synth
			sections.NegotiationPlan = negotiationPlan(f)
			sections = brief.ApplyFailClosed(sections, brief.MissingCitationSections(sections))
		} else {
			sections = heuristicSections(f)
		}
		span.SetAttributes(
			attribute.Bool("synthesized", synth != nil),
			attribute.Float64("citation_coverage", brief.CoverageRatio(sections)),
		)
		span.End()
	}
	r.recordStep(ctx, stepName(synth != nil, tools.SynthesizeBriefLLM, tools.SynthesizeBrief))
	r.recordStep(ctx, tools.BuildNegotiationPlan)

	r.transition(ctx, StateFinalizing)
	buildCtx, span := o.tracer.Start(ctx, SpanResponseBuild)
	email, fromLLM := r.draftEmail(buildCtx, f)
	r.recordStep(ctx, stepName(fromLLM, tools.DraftEmailLLM, tools.DraftEmail))
	b := &brief.Brief{
		VendorID:   r.vendorID,
		RequestID:  r.requestID,
		Sections:   sections.Normalized(),
		DraftEmail: email,
	}
	span.SetAttributes(attribute.Bool("email_from_llm", fromLLM))
	span.End()

	r.finish(ctx, b)
	r.transition(ctx, StateDone)
	return b, nil
}

func stepName(llmUsed bool, withLLM, without string) string {
	if llmUsed {
		return withLLM
	}
	return without
}

// recordStep adds a step to the tool trail. New rejects policies that
// cannot admit a full request, so a refusal here is a misconfiguration.
func (r *run) recordStep(ctx context.Context, name string) {
	if err := r.gw.Record(name); err != nil {
		r.o.logger.Warn(ctx, "tool gateway refused step", zap.String("step", name), zap.Error(err))
	}
}

func (r *run) extract(ctx context.Context) facts {
	o := r.o
	f := facts{docs: r.docs}

	f.fields, _ = tools.Invoke(r.gw, tools.ExtractContractFields, func() (evidence.Fields, error) {
		return o.extractor.Extract(r.bundle.Contract.Text), nil
	})
	f.invoices, _ = tools.Invoke(r.gw, tools.SummarizeInvoices, func() (evidence.InvoiceSummary, error) {
		return evidence.SummarizeInvoices(r.bundle.Invoices.Text), nil
	})
	f.usage, _ = tools.Invoke(r.gw, tools.SummarizeUsage, func() (evidence.UsageSummary, error) {
		return evidence.SummarizeUsage(r.bundle.Usage.Text, f.fields.LicensedSeats), nil
	})

	o.logger.Debug(ctx, "evidence extracted",
		zap.Bool("term_found", f.fields.TermStart != nil),
		zap.Bool("spend_found", f.invoices.AnnualSpendUSD != nil),
		zap.Bool("usage_found", f.usage.DeltaPercent != nil),
	)
	return f
}

// promptTexts returns the evidence texts as they may appear in prompts.
func (r *run) promptTexts(ctx context.Context) texts {
	t := texts{
		contract: r.bundle.Contract.Text,
		invoices: r.bundle.Invoices.Text,
		usage:    r.bundle.Usage.Text,
	}
	s := r.o.scrubber
	if s == nil || !s.Enabled() {
		return t
	}

	redacted := 0
	for _, p := range []*string{&t.contract, &t.invoices, &t.usage} {
		res := s.Redact(*p)
		*p = res.Content
		redacted += res.Summary.TotalSecrets
	}
	if redacted > 0 {
		r.o.logger.Info(ctx, "redacted secrets from evidence", zap.Int("count", redacted))
	}
	return t
}

// synthesize asks the model for the five sections and validates the
// reply. A nil result means the heuristic brief is used.
func (r *run) synthesize(ctx context.Context, f facts) *brief.Sections {
	o := r.o
	ctx, span := o.tracer.Start(ctx, SpanLLMCall, trace.WithAttributes(
		attribute.String("llm.provider", llm.ProviderOllama),
		attribute.String("llm.model", o.cfg.Model),
	))
	defer span.End()

	prompt := buildSynthesisPrompt(r.vendorID, r.requestID, f, r.promptTexts(ctx))
	resp, ok := r.chat(ctx, o.system.System(), prompt, ReasonRequestFailed)
	if !ok {
		span.SetAttributes(attribute.String("outcome", "fallback"))
		return nil
	}

	r.transition(ctx, StateValidating)
	secs, err := decodeReply(resp.Message.Content)
	if err != nil {
		o.recorder.RecordValidationFailure(StageSchema)
		o.recorder.RecordLLMError(ReasonInvalidSchema)
		o.logger.Warn(ctx, "synthesis reply rejected, using heuristics", zap.Error(err))
		span.SetAttributes(attribute.String("outcome", "invalid_schema"))
		return nil
	}

	missing := brief.MissingCitationSections(secs)
	if len(missing) == 0 {
		span.SetAttributes(attribute.String("outcome", "valid"))
		return &secs
	}

	o.recorder.RecordValidationFailure(StageCitations)
	r.transition(ctx, StateRepairing)
	span.SetAttributes(attribute.StringSlice("missing_citations", brief.SectionNames(missing)))
	if repaired, ok := r.repair(ctx, prompt, secs, missing); ok {
		span.SetAttributes(attribute.String("outcome", "repaired"))
		return &repaired
	}

	o.recorder.RecordLLMError(ReasonMissingCitations)
	o.logger.Warn(ctx, "citation repair failed, dropping uncited sections",
		zap.Strings("sections", brief.SectionNames(missing)))
	span.SetAttributes(attribute.String("outcome", "fail_closed"))
	out := brief.ApplyFailClosed(secs, missing)
	return &out
}

// repair makes the single repair attempt allowed per request.
func (r *run) repair(ctx context.Context, prompt string, current brief.Sections, missing []brief.Section) (brief.Sections, bool) {
	o := r.o
	resp, ok := r.chat(ctx, o.system.System(), buildRepairPrompt(prompt, current, missing), ReasonRepairFailed)
	if !ok {
		return brief.Sections{}, false
	}
	secs, err := decodeReply(resp.Message.Content)
	if err != nil {
		o.recorder.RecordValidationFailure(StageRepairSchema)
		return brief.Sections{}, false
	}
	if len(brief.MissingCitationSections(secs)) > 0 {
		return brief.Sections{}, false
	}
	return secs, true
}

func decodeReply(content string) (brief.Sections, error) {
	payload, err := extractPayload(content)
	if err != nil {
		return brief.Sections{}, fmt.Errorf("%w: %v", brief.ErrSchema, err)
	}
	return brief.DecodeSections(payload)
}

// chat runs one budgeted model call. The estimated cost of the prompt is
// reserved first; the actual cost replaces it once the provider answers,
// whether or not the reply later validates. failReason is recorded when
// the transport fails.
func (r *run) chat(ctx context.Context, system, prompt, failReason string) (*llm.ChatResponse, bool) {
	o := r.o

	estTokens := budget.EstimateTokens(prompt)
	res, err := o.ledger.Reserve(budget.EstimateCostUSD(estTokens, o.cfg.CostPer1KTokensUSD), o.cfg.DailyBudgetUSD)
	if err != nil {
		o.recorder.RecordLLMError(ReasonBudgetExceeded)
		o.logger.Warn(ctx, "llm call skipped", zap.String("reason", ReasonBudgetExceeded), zap.Error(err))
		return nil, false
	}

	req := llm.ChatRequest{
		Model: o.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: prompt},
		},
		Stream:  false,
		Format:  llm.FormatJSON,
		Options: llm.Options{NumPredict: o.cfg.MaxOutputTokens},
	}
	start := o.now()
	resp, err := o.client.Chat(ctx, req)
	o.recorder.RecordLLMLatency(llm.ProviderOllama, o.now().Sub(start))
	if err != nil {
		res.Release()
		o.recorder.RecordLLMError(failReason)
		o.logger.Warn(ctx, "llm call failed, using heuristics", zap.String("reason", failReason), zap.Error(err))
		return nil, false
	}

	tokens := resp.TotalTokens()
	if tokens == 0 {
		tokens = estTokens
	}
	cost := budget.EstimateCostUSD(tokens, o.cfg.CostPer1KTokensUSD)
	spent := res.Commit(cost)
	r.billedCalls++
	r.llmIn += resp.PromptEvalCount
	r.llmOut += resp.EvalCount
	r.costUSD += cost
	o.logger.Debug(ctx, "llm call billed", zap.Float64("cost_usd", cost), zap.Float64("spent_today_usd", spent))
	return resp, true
}

// draftEmail asks the model for the outreach email and falls back to the
// template on any failure.
func (r *run) draftEmail(ctx context.Context, f facts) (brief.DraftEmail, bool) {
	o := r.o
	if !o.cfg.LLMBacked() || !o.policy.Allows(tools.DraftEmailLLM) {
		return fallbackEmail(r.vendorID, f), false
	}

	spend, _ := f.invoices.Spend()
	delta, _ := f.usage.Delta()
	resp, ok := r.chat(ctx, emailSystemPrompt, buildEmailPrompt(r.vendorID, spend, delta), ReasonEmailFailed)
	if !ok {
		return fallbackEmail(r.vendorID, f), false
	}

	email, err := decodeEmail(resp.Message.Content)
	if err != nil {
		o.recorder.RecordLLMError(ReasonEmailFailed)
		o.logger.Warn(ctx, "draft email reply rejected, using template", zap.Error(err))
		return fallbackEmail(r.vendorID, f), false
	}
	return email, true
}

var errIncompleteEmail = errors.New("email reply missing subject or body")

func decodeEmail(content string) (brief.DraftEmail, error) {
	payload, err := extractPayload(content)
	if err != nil {
		return brief.DraftEmail{}, err
	}
	var email brief.DraftEmail
	if err := json.Unmarshal(payload, &email); err != nil {
		return brief.DraftEmail{}, err
	}
	if strings.TrimSpace(email.Subject) == "" || strings.TrimSpace(email.Body) == "" {
		return brief.DraftEmail{}, errIncompleteEmail
	}
	return email, nil
}

// block emits the counters and audit record of a rejected request.
func (r *run) block(ctx context.Context, pattern string) {
	o := r.o
	o.recorder.RecordAgentCompletion(audit.StatusInjectionDetected)
	o.traces.RecordTrace(ctx, audit.Record{
		RequestID:       r.requestID,
		CreatedAt:       o.now().UTC(),
		VendorID:        r.vendorID,
		Status:          audit.StatusInjectionDetected,
		RetrievedDocIDs: r.docs.list(),
		ToolCalls:       []string{},
		Validation:      audit.Validation{PromptInjection: audit.InjectionBlocked},
	})
	o.logger.Warn(ctx, "prompt injection detected, request blocked", zap.String("pattern", pattern))
}

// finish emits the counters and audit record of a completed request.
func (r *run) finish(ctx context.Context, b *brief.Brief) {
	o := r.o

	coverage := audit.SnapshotCoverage(b.Sections)
	o.recorder.RecordCitationCoverage(coverage.CitationCoverage)

	tokensIn := budget.EstimateTokens(r.bundle.Contract.Text, r.bundle.Invoices.Text, r.bundle.Usage.Text)
	tokensOut := 0
	if out, err := json.Marshal(b); err == nil {
		tokensOut = budget.EstimateTokens(string(out))
	}
	o.recorder.RecordAgentCompletion(audit.StatusSuccess)
	o.recorder.RecordAgentTokens("in", tokensIn)
	o.recorder.RecordAgentTokens("out", tokensOut)
	o.recorder.RecordLLMTokens("in", r.llmIn)
	o.recorder.RecordLLMTokens("out", r.llmOut)

	rec := audit.Record{
		RequestID:       r.requestID,
		CreatedAt:       o.now().UTC(),
		VendorID:        r.vendorID,
		Status:          audit.StatusSuccess,
		RetrievedDocIDs: r.docs.list(),
		ToolCalls:       r.gw.Trail(),
		Tokens:          audit.Tokens{In: tokensIn, Out: tokensOut, Total: tokensIn + tokensOut},
		LLMTokens:       &audit.LLMTokens{In: r.llmIn, Out: r.llmOut},
		Validation: audit.Validation{
			Coverage:        coverage,
			PromptInjection: audit.InjectionNotDetected,
		},
	}
	if r.billedCalls > 0 {
		cost := brief.Round(r.costUSD, 6)
		rec.CostUSDEstimate = &cost
	}
	o.traces.RecordTrace(ctx, rec)

	o.logger.Info(ctx, "brief generated",
		zap.Strings("tool_calls", rec.ToolCalls),
		zap.Float64("citation_coverage", coverage.CitationCoverage),
		zap.Int("llm_calls_billed", r.billedCalls),
		zap.Duration("duration", o.now().Sub(r.started)),
	)
}
