package brief

// Span labels used in citations.
const (
	SpanTerm        = "TERM"
	SpanPricing     = "PRICING"
	SpanUsage       = "USAGE"
	SpanRisk        = "RISK"
	SpanNegotiation = "NEGOTIATION"
)

// Citation points at the evidence document supporting a section.
type Citation struct {
	DocID string  `json:"doc_id" validate:"required"`
	Page  *int    `json:"page"`
	Span  *string `json:"span"`
}

// Cite returns a single-element citation list for docID with the given span label.
func Cite(docID, span string) []Citation {
	return []Citation{{DocID: docID, Span: &span}}
}

// RenewalTerms describes the contract term and renewal mechanics.
type RenewalTerms struct {
	TermStart        *Date      `json:"term_start"`
	TermEnd          *Date      `json:"term_end"`
	NoticeWindowDays *int       `json:"notice_window_days"`
	AutoRenew        *bool      `json:"auto_renew"`
	Citations        []Citation `json:"citations" validate:"dive"`
}

// Pricing describes spend and contractual price changes.
type Pricing struct {
	AnnualSpendUSD  *float64   `json:"annual_spend_usd"`
	UpliftClausePct *float64   `json:"uplift_clause_pct"`
	Citations       []Citation `json:"citations" validate:"dive"`
}

// UsageInsights compares allocated and active seats.
type UsageInsights struct {
	AllocatedSeats *int       `json:"allocated_seats"`
	ActiveSeats    *int       `json:"active_seats"`
	DeltaPercent   *float64   `json:"delta_percent"`
	Citations      []Citation `json:"citations" validate:"dive"`
}

// RiskFlags lists contractual and compliance risks.
type RiskFlags struct {
	AutoRenewSoon        bool       `json:"auto_renew_soon"`
	LiabilityCapMultiple *float64   `json:"liability_cap_multiple"`
	DPAStatus            *string    `json:"dpa_status"`
	PIIRisk              *string    `json:"pii_risk"`
	Citations            []Citation `json:"citations" validate:"dive"`
}

// NegotiationPlan is the recommended negotiating position.
type NegotiationPlan struct {
	TargetDiscountPct *float64   `json:"target_discount_pct"`
	WalkawayDeltaPct  *float64   `json:"walkaway_delta_pct"`
	Levers            []string   `json:"levers"`
	Citations         []Citation `json:"citations" validate:"dive"`
}

// DraftEmail is the outreach email proposed to the vendor.
type DraftEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sections holds the five brief sections.
type Sections struct {
	RenewalTerms    RenewalTerms    `json:"renewal_terms"`
	Pricing         Pricing         `json:"pricing"`
	Usage           UsageInsights   `json:"usage"`
	RiskFlags       RiskFlags       `json:"risk_flags"`
	NegotiationPlan NegotiationPlan `json:"negotiation_plan"`
}

// Brief is the renewal brief returned to callers.
type Brief struct {
	VendorID  string `json:"vendor_id"`
	RequestID string `json:"request_id"`
	Sections
	DraftEmail DraftEmail `json:"draft_email"`
}

// Response wraps a brief for the HTTP API.
type Response struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	Brief     *Brief `json:"brief"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// normalize replaces nil slices so that they serialize as empty arrays.
func (s *Sections) normalize() {
	for _, sec := range AllSections() {
		if s.citations(sec) == nil {
			s.setCitations(sec, []Citation{})
		}
	}
	if s.NegotiationPlan.Levers == nil {
		s.NegotiationPlan.Levers = []string{}
	}
}
