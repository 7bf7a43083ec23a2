package synthesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
	"github.com/fyrsmithlabs/renewaldesk/internal/evidence"
)

const synthesisInstructions = "Return JSON only (no markdown). If evidence is missing for a field, set it to null " +
	"and leave citations empty for that section. Each populated section must include at least " +
	"one citation with doc_id and span. Use spans: TERM, PRICING, USAGE, RISK, NEGOTIATION."

// emailSystemPrompt is the system message of the draft email call.
const emailSystemPrompt = "You are a renewal desk assistant."

// facts are the deterministic results of extraction for one request.
type facts struct {
	docs     docIDs
	fields   evidence.Fields
	invoices evidence.InvoiceSummary
	usage    evidence.UsageSummary
}

// docIDs are the identifiers cited for each evidence document.
type docIDs struct {
	contract string
	invoices string
	usage    string
}

func newDocIDs(b evidence.Bundle) docIDs {
	id := func(k evidence.Kind) string {
		if d := b.Get(k); d.ID != "" {
			return d.ID
		}
		return k.String()
	}
	return docIDs{
		contract: id(evidence.KindContract),
		invoices: id(evidence.KindInvoices),
		usage:    id(evidence.KindUsage),
	}
}

func (d docIDs) list() []string {
	return []string{d.contract, d.invoices, d.usage}
}

type exampleCitation struct {
	DocID string `json:"doc_id"`
	Page  *int   `json:"page"`
	Span  string `json:"span"`
}

func exampleCite(docID, span string) []exampleCitation {
	return []exampleCitation{{DocID: docID, Span: span}}
}

// schemaExample is the schema-by-example embedded in the synthesis prompt.
// Field order matches the brief.
type schemaExample struct {
	RenewalTerms struct {
		TermStart        string            `json:"term_start"`
		TermEnd          string            `json:"term_end"`
		NoticeWindowDays string            `json:"notice_window_days"`
		AutoRenew        string            `json:"auto_renew"`
		Citations        []exampleCitation `json:"citations"`
	} `json:"renewal_terms"`
	Pricing struct {
		AnnualSpendUSD  string            `json:"annual_spend_usd"`
		UpliftClausePct string            `json:"uplift_clause_pct"`
		Citations       []exampleCitation `json:"citations"`
	} `json:"pricing"`
	Usage struct {
		AllocatedSeats string            `json:"allocated_seats"`
		ActiveSeats    string            `json:"active_seats"`
		DeltaPercent   string            `json:"delta_percent"`
		Citations      []exampleCitation `json:"citations"`
	} `json:"usage"`
	RiskFlags struct {
		AutoRenewSoon        string            `json:"auto_renew_soon"`
		LiabilityCapMultiple string            `json:"liability_cap_multiple"`
		DPAStatus            string            `json:"dpa_status"`
		PIIRisk              string            `json:"pii_risk"`
		Citations            []exampleCitation `json:"citations"`
	} `json:"risk_flags"`
	NegotiationPlan struct {
		TargetDiscountPct string            `json:"target_discount_pct"`
		WalkawayDeltaPct  string            `json:"walkaway_delta_pct"`
		Levers            []string          `json:"levers"`
		Citations         []exampleCitation `json:"citations"`
	} `json:"negotiation_plan"`
}

func newSchemaExample(d docIDs) schemaExample {
	const (
		date = "YYYY-MM-DD or null"
		num  = "float or null"
		i    = "int or null"
		b    = "bool or null"
		str  = "string or null"
	)
	var s schemaExample
	s.RenewalTerms.TermStart = date
	s.RenewalTerms.TermEnd = date
	s.RenewalTerms.NoticeWindowDays = i
	s.RenewalTerms.AutoRenew = b
	s.RenewalTerms.Citations = exampleCite(d.contract, brief.SpanTerm)

	s.Pricing.AnnualSpendUSD = num
	s.Pricing.UpliftClausePct = num
	s.Pricing.Citations = exampleCite(d.invoices, brief.SpanPricing)

	s.Usage.AllocatedSeats = i
	s.Usage.ActiveSeats = i
	s.Usage.DeltaPercent = num
	s.Usage.Citations = exampleCite(d.usage, brief.SpanUsage)

	s.RiskFlags.AutoRenewSoon = b
	s.RiskFlags.LiabilityCapMultiple = num
	s.RiskFlags.DPAStatus = str
	s.RiskFlags.PIIRisk = str
	s.RiskFlags.Citations = exampleCite(d.contract, brief.SpanRisk)

	s.NegotiationPlan.TargetDiscountPct = num
	s.NegotiationPlan.WalkawayDeltaPct = num
	s.NegotiationPlan.Levers = []string{"string"}
	s.NegotiationPlan.Citations = exampleCite(d.contract, brief.SpanNegotiation)
	return s
}

// texts are the evidence texts embedded in prompts, already scrubbed.
type texts struct {
	contract string
	invoices string
	usage    string
}

func buildSynthesisPrompt(vendorID, requestID string, f facts, t texts) string {
	var b strings.Builder
	b.WriteString(synthesisInstructions + "\n")
	fmt.Fprintf(&b, "Vendor: %s\n", vendorID)
	fmt.Fprintf(&b, "Request: %s\n", requestID)
	fmt.Fprintf(&b, "Schema example:\n%s\n\n", encodeJSON(newSchemaExample(f.docs), true))
	b.WriteString("Structured facts (derived from evidence):\n")
	fmt.Fprintf(&b, "Contract fields: %s\n", encodeJSON(f.fields, false))
	fmt.Fprintf(&b, "Invoices summary: %s\n", encodeJSON(f.invoices, false))
	fmt.Fprintf(&b, "Usage summary: %s\n\n", encodeJSON(f.usage, false))
	b.WriteString("Evidence:\n")
	fmt.Fprintf(&b, "[contract doc_id=%s]\n%s\n\n", f.docs.contract, t.contract)
	fmt.Fprintf(&b, "[invoices doc_id=%s]\n%s\n\n", f.docs.invoices, t.invoices)
	fmt.Fprintf(&b, "[usage doc_id=%s]\n%s\n", f.docs.usage, t.usage)
	return b.String()
}

func buildRepairPrompt(prompt string, current brief.Sections, missing []brief.Section) string {
	return "The JSON output is missing citations for sections: " +
		strings.Join(brief.SectionNames(missing), ", ") + ".\n" +
		"Return corrected JSON only. For any field that cannot be supported by evidence, " +
		"set it to null and leave citations empty. Do not add new sections.\n\n" +
		"Original prompt:\n" + prompt + "\n\n" +
		"Current JSON:\n" + encodeJSON(current, false)
}

func buildEmailPrompt(vendorID string, spend, delta float64) string {
	return "Write a concise renewal outreach email. Return JSON with keys " +
		"`{\"subject\": \"...\", \"body\": \"...\"}` only.\n\n" +
		"Vendor: " + vendorID + "\n" +
		"Annual spend: $" + formatUSD(spend) + "\n" +
		"Usage delta vs contracted seats: " + formatPct(delta) + "% " + direction(delta) + "\n" +
		"Tone: professional, collaborative, and action-oriented."
}

// formatPct renders the magnitude of a percentage with one decimal.
func formatPct(delta float64) string {
	return strconv.FormatFloat(math.Abs(delta), 'f', 1, 64)
}

func direction(delta float64) string {
	if delta < 0 {
		return "below"
	}
	return "above"
}

// encodeJSON marshals v without HTML escaping. Prompt inputs are plain
// structs, so encoding cannot fail.
func encodeJSON(v any, indent bool) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// formatUSD renders v rounded to whole dollars with thousands separators.
func formatUSD(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg && s != "0" {
		return "-" + b.String()
	}
	return b.String()
}
