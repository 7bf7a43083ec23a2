// Package audit records one trace per brief request and fans it out to
// the in-memory debug store, NATS and the history database.
package audit

import (
	"time"

	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
)

// Request outcomes.
const (
	StatusSuccess           = "success"
	StatusInjectionDetected = "injection_detected"
)

// Prompt-injection verdicts.
const (
	InjectionBlocked     = "blocked"
	InjectionNotDetected = "not_detected"
)

// Tokens are word-count estimates of evidence in and brief out.
type Tokens struct {
	In    int `json:"in"`
	Out   int `json:"out"`
	Total int `json:"total"`
}

// LLMTokens are provider-reported token counts.
type LLMTokens struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// Coverage is the per-section citation snapshot of a finished brief.
type Coverage struct {
	CitationCoverage         float64  `json:"citation_coverage"`
	SectionsWithCitations    []string `json:"sections_with_citations"`
	SectionsMissingCitations []string `json:"sections_missing_citations"`
}

// Validation is the validation block of a trace. Blocked requests carry
// no coverage.
type Validation struct {
	*Coverage
	PromptInjection string `json:"prompt_injection"`
}

// Record is the audit trace of one request.
type Record struct {
	RequestID       string     `json:"request_id"`
	CreatedAt       time.Time  `json:"created_at"`
	VendorID        string     `json:"vendor_id"`
	Status          string     `json:"status"`
	RetrievedDocIDs []string   `json:"retrieved_doc_ids"`
	ToolCalls       []string   `json:"tool_calls"`
	Tokens          Tokens     `json:"tokens"`
	LLMTokens       *LLMTokens `json:"llm_tokens,omitempty"`
	CostUSDEstimate *float64   `json:"cost_usd_estimate"`
	Validation      Validation `json:"validation"`
}

// SnapshotCoverage builds the coverage block for s.
func SnapshotCoverage(s brief.Sections) *Coverage {
	with := []string{}
	missing := []string{}
	for _, sec := range brief.AllSections() {
		if len(s.Citations(sec)) > 0 {
			with = append(with, sec.String())
		} else {
			missing = append(missing, sec.String())
		}
	}
	return &Coverage{
		CitationCoverage:         brief.CoverageRatio(s),
		SectionsWithCitations:    with,
		SectionsMissingCitations: missing,
	}
}
