package brief

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populated reports whether any domain field of sec carries a value.
func populated(s Sections, sec Section) bool {
	switch sec {
	case SectionRenewalTerms:
		t := s.RenewalTerms
		return t.TermStart != nil || t.TermEnd != nil || t.NoticeWindowDays != nil || t.AutoRenew != nil
	case SectionPricing:
		return s.Pricing.AnnualSpendUSD != nil || s.Pricing.UpliftClausePct != nil
	case SectionUsage:
		u := s.Usage
		return u.AllocatedSeats != nil || u.ActiveSeats != nil || u.DeltaPercent != nil
	case SectionRiskFlags:
		r := s.RiskFlags
		return r.AutoRenewSoon || r.LiabilityCapMultiple != nil || r.DPAStatus != nil || r.PIIRisk != nil
	case SectionNegotiationPlan:
		n := s.NegotiationPlan
		return n.TargetDiscountPct != nil || n.WalkawayDeltaPct != nil || len(n.Levers) > 0
	}
	return false
}

func fullSections() Sections {
	return Sections{
		RenewalTerms: RenewalTerms{
			TermStart:        DatePtr(NewDate(2024, 1, 1)),
			TermEnd:          DatePtr(NewDate(2024, 12, 31)),
			NoticeWindowDays: Ptr(45),
			AutoRenew:        Ptr(true),
			Citations:        Cite("contract", SpanTerm),
		},
		Pricing: Pricing{
			AnnualSpendUSD:  Ptr(120000.0),
			UpliftClausePct: Ptr(7.0),
			Citations:       Cite("invoices", SpanPricing),
		},
		Usage: UsageInsights{
			AllocatedSeats: Ptr(100),
			ActiveSeats:    Ptr(80),
			DeltaPercent:   Ptr(-20.0),
			Citations:      Cite("usage", SpanUsage),
		},
		RiskFlags: RiskFlags{
			AutoRenewSoon:        true,
			LiabilityCapMultiple: Ptr(1.0),
			DPAStatus:            Ptr("missing"),
			PIIRisk:              Ptr("low"),
			Citations:            Cite("contract", SpanRisk),
		},
		NegotiationPlan: NegotiationPlan{
			TargetDiscountPct: Ptr(10.0),
			WalkawayDeltaPct:  Ptr(15.0),
			Levers:            []string{"Usage below contracted seats"},
			Citations:         Cite("contract", SpanNegotiation),
		},
	}
}

func TestSectionString(t *testing.T) {
	assert.Equal(t,
		[]string{"renewal_terms", "pricing", "usage", "risk_flags", "negotiation_plan"},
		SectionNames(AllSections()))
	assert.Equal(t, "Section(9)", Section(9).String())
}

func TestMissingCitationSections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Sections)
		missing []Section
	}{
		{name: "fully cited", mutate: func(*Sections) {}},
		{
			name:    "pricing uncited",
			mutate:  func(s *Sections) { s.Pricing.Citations = nil },
			missing: []Section{SectionPricing},
		},
		{
			name: "enumeration order",
			mutate: func(s *Sections) {
				s.NegotiationPlan.Citations = []Citation{}
				s.RenewalTerms.Citations = nil
			},
			missing: []Section{SectionRenewalTerms, SectionNegotiationPlan},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fullSections()
			tt.mutate(&s)
			assert.Equal(t, tt.missing, MissingCitationSections(s))
		})
	}
}

func TestCoverageRatio(t *testing.T) {
	s := fullSections()
	assert.Equal(t, 1.0, CoverageRatio(s))

	s.Pricing.Citations = nil
	assert.Equal(t, 0.8, CoverageRatio(s))

	s.Usage.Citations = nil
	s.RiskFlags.Citations = nil
	assert.Equal(t, 0.4, CoverageRatio(s))

	assert.Equal(t, 0.0, CoverageRatio(Sections{}))
}

func TestApplyFailClosed(t *testing.T) {
	s := fullSections()
	s.Pricing.Citations = nil

	out := ApplyFailClosed(s, MissingCitationSections(s))

	assert.Nil(t, out.Pricing.AnnualSpendUSD)
	assert.Nil(t, out.Pricing.UpliftClausePct)
	assert.NotNil(t, out.Pricing.Citations)
	assert.Empty(t, out.Pricing.Citations)
	assert.Equal(t, s.RenewalTerms, out.RenewalTerms)
	assert.Equal(t, s.Usage, out.Usage)

	// the input is not modified
	assert.NotNil(t, s.Pricing.AnnualSpendUSD)
}

func TestApplyFailClosedResetsRiskAndPlan(t *testing.T) {
	s := fullSections()
	s.RiskFlags.Citations = nil
	s.NegotiationPlan.Citations = nil

	out := ApplyFailClosed(s, MissingCitationSections(s))

	assert.False(t, out.RiskFlags.AutoRenewSoon)
	assert.Nil(t, out.RiskFlags.PIIRisk)
	assert.NotNil(t, out.NegotiationPlan.Levers)
	assert.Empty(t, out.NegotiationPlan.Levers)
	assert.Nil(t, out.NegotiationPlan.TargetDiscountPct)
}

func TestFailClosedInvariant(t *testing.T) {
	// Every subset of uncited sections must end up with no populated
	// section lacking citations.
	all := AllSections()
	for mask := 0; mask < 1<<len(all); mask++ {
		s := fullSections()
		for i, sec := range all {
			if mask&(1<<i) != 0 {
				s.setCitations(sec, nil)
			}
		}

		out := ApplyFailClosed(s, MissingCitationSections(s))
		for _, sec := range all {
			if populated(out, sec) {
				assert.NotEmpty(t, out.Citations(sec), "mask %05b section %s", mask, sec)
			}
		}

		again := ApplyFailClosed(out, MissingCitationSections(out))
		assert.Equal(t, out, again, "fail-closed must be idempotent (mask %05b)", mask)
	}
}

func TestDecodeSections(t *testing.T) {
	payload := `{
		"renewal_terms": {"term_start": "2024-01-01", "term_end": null, "notice_window_days": 45,
			"auto_renew": true, "citations": [{"doc_id": "contract", "page": null, "span": "TERM"}]},
		"pricing": {"annual_spend_usd": 1200.5, "uplift_clause_pct": null, "citations": []},
		"usage": {"allocated_seats": 100, "active_seats": 80, "delta_percent": -20,
			"citations": [{"doc_id": "usage"}]},
		"risk_flags": {"auto_renew_soon": true, "citations": [{"doc_id": "contract", "span": "RISK"}]},
		"negotiation_plan": {"levers": ["a"], "citations": [{"doc_id": "contract"}]},
		"extra": "ignored"
	}`

	s, err := DecodeSections([]byte(payload))
	require.NoError(t, err)

	require.NotNil(t, s.RenewalTerms.TermStart)
	assert.Equal(t, "2024-01-01", s.RenewalTerms.TermStart.String())
	assert.Nil(t, s.RenewalTerms.TermEnd)
	assert.Equal(t, 45, *s.RenewalTerms.NoticeWindowDays)
	assert.Equal(t, 1200.5, *s.Pricing.AnnualSpendUSD)
	assert.NotNil(t, s.Pricing.Citations)
	assert.Equal(t, []Section{SectionPricing}, MissingCitationSections(s))
}

func TestDecodeSections_IntegralFloats(t *testing.T) {
	payload := `{
		"renewal_terms": {"notice_window_days": 60.0, "citations": [{"doc_id": "contract"}]},
		"pricing": {"annual_spend_usd": 120000.0, "citations": [{"doc_id": "invoices"}]},
		"usage": {"allocated_seats": 5e2, "active_seats": 420.00, "delta_percent": -16.0,
			"citations": [{"doc_id": "usage"}]},
		"risk_flags": {"citations": [{"doc_id": "contract"}]},
		"negotiation_plan": {"citations": [{"doc_id": "contract"}]}
	}`

	s, err := DecodeSections([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 60, *s.RenewalTerms.NoticeWindowDays)
	assert.Equal(t, 500, *s.Usage.AllocatedSeats)
	assert.Equal(t, 420, *s.Usage.ActiveSeats)
	assert.Equal(t, 120000.0, *s.Pricing.AnnualSpendUSD)
	assert.Equal(t, -16.0, *s.Usage.DeltaPercent)
}

func TestDecodeSectionsErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `nope`},
		{name: "array", payload: `[]`},
		{name: "missing section", payload: `{"renewal_terms": {}, "pricing": {}, "usage": {}, "risk_flags": {}}`},
		{name: "bad date", payload: `{"renewal_terms": {"term_start": "01/02/2024"}, "pricing": {}, "usage": {}, "risk_flags": {}, "negotiation_plan": {}}`},
		{name: "citation without doc id", payload: `{"renewal_terms": {"citations": [{"span": "TERM"}]}, "pricing": {}, "usage": {}, "risk_flags": {}, "negotiation_plan": {}}`},
		{name: "fractional int", payload: `{"renewal_terms": {"notice_window_days": 60.5}, "pricing": {}, "usage": {}, "risk_flags": {}, "negotiation_plan": {}}`},
		{name: "trailing data", payload: `{"renewal_terms": {}, "pricing": {}, "usage": {}, "risk_flags": {}, "negotiation_plan": {}} {}`},
		{name: "wrong type", payload: `{"renewal_terms": {"notice_window_days": "soon"}, "pricing": {}, "usage": {}, "risk_flags": {}, "negotiation_plan": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSections([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchema))
		})
	}
}

func TestBriefJSONShape(t *testing.T) {
	b := Brief{
		VendorID:  "acme",
		RequestID: "req-1",
		Sections:  ApplyFailClosed(Sections{}, AllSections()),
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, name := range SectionNames(AllSections()) {
		section, ok := decoded[name].(map[string]any)
		require.True(t, ok, name)
		assert.Equal(t, []any{}, section["citations"], name)
	}
	assert.Equal(t, false, decoded["risk_flags"].(map[string]any)["auto_renew_soon"])
	assert.Equal(t, []any{}, decoded["negotiation_plan"].(map[string]any)["levers"])
	assert.Contains(t, decoded, "draft_email")
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, 3, 9)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-03-09"`, string(data))

	var back Date
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, d.Equal(back.Time))

	assert.Error(t, json.Unmarshal([]byte(`20250309`), &back))
}
