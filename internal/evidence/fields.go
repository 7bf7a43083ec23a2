package evidence

import "github.com/fyrsmithlabs/renewaldesk/internal/brief"

// Fields are the facts extracted from a contract. Every field except
// AutoRenew is optional; nil means the rule found nothing.
type Fields struct {
	TermStart            *brief.Date `json:"term_start,omitempty"`
	TermEnd              *brief.Date `json:"term_end,omitempty"`
	NoticeWindowDays     *int        `json:"notice_window_days,omitempty"`
	AutoRenew            bool        `json:"auto_renew"`
	UpliftPct            *float64    `json:"uplift_pct,omitempty"`
	StatedPrice          *float64    `json:"stated_price,omitempty"`
	LicensedSeats        *int        `json:"licensed_seats,omitempty"`
	LiabilityCapMultiple *float64    `json:"liability_cap_multiple,omitempty"`
	DPAStatus            *string     `json:"dpa_status,omitempty"`
}

// Notice returns the notice window in days and whether it is set.
func (f Fields) Notice() (int, bool) {
	if f.NoticeWindowDays == nil {
		return 0, false
	}
	return *f.NoticeWindowDays, true
}

// Uplift returns the uplift percent and whether it is set.
func (f Fields) Uplift() (float64, bool) {
	if f.UpliftPct == nil {
		return 0, false
	}
	return *f.UpliftPct, true
}

// Seats returns the licensed seat count and whether it is set.
func (f Fields) Seats() (int, bool) {
	if f.LicensedSeats == nil {
		return 0, false
	}
	return *f.LicensedSeats, true
}

// InvoiceSummary aggregates the invoices CSV.
type InvoiceSummary struct {
	AnnualSpendUSD *float64 `json:"annual_spend_usd"`
	AvgSeats       *float64 `json:"avg_seats"`
}

// Spend returns the annual spend and whether it is known.
func (s InvoiceSummary) Spend() (float64, bool) {
	if s.AnnualSpendUSD == nil {
		return 0, false
	}
	return *s.AnnualSpendUSD, true
}

// UsageSummary is the latest usage snapshot.
type UsageSummary struct {
	AllocatedSeats *int     `json:"allocated_seats"`
	ActiveSeats    *int     `json:"active_seats"`
	DeltaPercent   *float64 `json:"delta_percent"`
}

// Delta returns the usage delta percent and whether it is known.
func (s UsageSummary) Delta() (float64, bool) {
	if s.DeltaPercent == nil {
		return 0, false
	}
	return *s.DeltaPercent, true
}
