// Package tools gates the pipeline steps a brief request may run and
// records the order in which they ran.
package tools

import (
	"errors"
	"fmt"
	"sync"
)

// Errors.
var (
	ErrToolNotAllowed = errors.New("tool not allowed")
	ErrToolLimit      = errors.New("tool call limit reached")
)

// Step names.
const (
	ExtractContractFields = "extract_contract_fields"
	SummarizeInvoices     = "summarize_invoices"
	SummarizeUsage        = "summarize_usage"
	SynthesizeBrief       = "synthesize_brief"
	SynthesizeBriefLLM    = "synthesize_brief_llm"
	BuildNegotiationPlan  = "build_negotiation_plan"
	DraftEmail            = "draft_email"
	DraftEmailLLM         = "draft_email_llm"
)

// DefaultMaxCalls is the per-request call cap.
const DefaultMaxCalls = 8

// DefaultAllowlist returns every step the orchestrator runs.
func DefaultAllowlist() []string {
	return []string{
		ExtractContractFields,
		SummarizeInvoices,
		SummarizeUsage,
		SynthesizeBrief,
		SynthesizeBriefLLM,
		BuildNegotiationPlan,
		DraftEmail,
		DraftEmailLLM,
	}
}

// Policy is the immutable allowlist and call cap shared by all requests.
type Policy struct {
	allowed  map[string]struct{}
	maxCalls int
}

// NewPolicy creates a policy. With no names, DefaultAllowlist is used;
// a non-positive maxCalls means DefaultMaxCalls.
func NewPolicy(maxCalls int, names ...string) *Policy {
	if len(names) == 0 {
		names = DefaultAllowlist()
	}
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return &Policy{allowed: allowed, maxCalls: maxCalls}
}

// Allows reports whether name is on the allowlist.
func (p *Policy) Allows(name string) bool {
	_, ok := p.allowed[name]
	return ok
}

// MaxCalls returns the per-request cap.
func (p *Policy) MaxCalls() int {
	return p.maxCalls
}

// Gateway returns a fresh per-request gateway.
func (p *Policy) Gateway() *Gateway {
	return &Gateway{policy: p}
}

// Gateway tracks the steps of one request.
type Gateway struct {
	policy *Policy

	mu    sync.Mutex
	trail []string
}

// admit checks name against the policy and appends it to the trail.
func (g *Gateway) admit(name string) error {
	if !g.policy.Allows(name) {
		return fmt.Errorf("%w: %s", ErrToolNotAllowed, name)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.trail) >= g.policy.maxCalls {
		return fmt.Errorf("%w: %d calls", ErrToolLimit, g.policy.maxCalls)
	}
	g.trail = append(g.trail, name)
	return nil
}

// Trail returns the admitted step names in call order.
func (g *Gateway) Trail() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.trail))
	copy(out, g.trail)
	return out
}

// Invoke runs fn as step name. The step is recorded even when fn fails.
func Invoke[T any](g *Gateway, name string, fn func() (T, error)) (T, error) {
	if err := g.admit(name); err != nil {
		var zero T
		return zero, err
	}
	return fn()
}

// Record admits a step whose work happened elsewhere.
func (g *Gateway) Record(name string) error {
	return g.admit(name)
}
