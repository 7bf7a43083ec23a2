package synthesis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
	"github.com/fyrsmithlabs/renewaldesk/internal/evidence"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{120000, "120,000"},
		{1234567.49, "1,234,567"},
		{-45000, "-45,000"},
		{-0.2, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUSD(tt.in), "%v", tt.in)
	}
}

func TestBuildSynthesisPrompt(t *testing.T) {
	bundle := evidence.Bundle{
		Contract: evidence.Document{ID: "c.pdf", Text: "contract <text> & more"},
		Usage:    evidence.Document{Text: "usage"},
	}
	f := facts{docs: newDocIDs(bundle)}
	f.fields.NoticeWindowDays = brief.Ptr(30)

	prompt := buildSynthesisPrompt("v1", "r1", f, texts{contract: bundle.Contract.Text, usage: "usage"})

	assert.True(t, strings.HasPrefix(prompt, synthesisInstructions+"\nVendor: v1\nRequest: r1\nSchema example:\n{\n  \"renewal_terms\": {"))
	assert.Contains(t, prompt, `"doc_id": "c.pdf"`)
	assert.Contains(t, prompt, `"doc_id": "invoices"`)
	assert.Contains(t, prompt, `"levers": [`+"\n"+`      "string"`)
	assert.Contains(t, prompt, `"notice_window_days":30`)
	assert.Contains(t, prompt, "[contract doc_id=c.pdf]\ncontract <text> & more\n\n")
	assert.Contains(t, prompt, "[invoices doc_id=invoices]\n\n\n")
	assert.True(t, strings.HasSuffix(prompt, "[usage doc_id=usage]\nusage\n"))

	order := []string{"renewal_terms", "pricing", "usage", "risk_flags", "negotiation_plan"}
	last := -1
	for _, key := range order {
		idx := strings.Index(prompt, `"`+key+`": {`)
		assert.Greater(t, idx, last, key)
		last = idx
	}
}

func TestBuildRepairPrompt(t *testing.T) {
	missing := []brief.Section{brief.SectionPricing, brief.SectionRiskFlags}
	got := buildRepairPrompt("ORIGINAL", brief.Sections{}.Normalized(), missing)

	assert.True(t, strings.HasPrefix(got, "The JSON output is missing citations for sections: pricing, risk_flags.\n"))
	assert.Contains(t, got, "Do not add new sections.\n\nOriginal prompt:\nORIGINAL\n\nCurrent JSON:\n{")
}

func TestBuildEmailPrompt(t *testing.T) {
	got := buildEmailPrompt("acme", 54321, 3)
	assert.Contains(t, got, "Annual spend: $54,321\n")
	assert.Contains(t, got, "Usage delta vs contracted seats: 3.0% above\n")
	assert.True(t, strings.HasSuffix(got, "Tone: professional, collaborative, and action-oriented."))
}
