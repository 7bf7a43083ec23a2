package synthesis

import (
	"unicode"

	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
)

// autoRenewWindowDays is the notice window at or below which auto-renewal
// is flagged as imminent.
const autoRenewWindowDays = 60

// heuristicSections builds every section from extracted facts with one
// citation per section.
func heuristicSections(f facts) brief.Sections {
	notice, hasNotice := f.fields.Notice()
	return brief.Sections{
		RenewalTerms: brief.RenewalTerms{
			TermStart:        f.fields.TermStart,
			TermEnd:          f.fields.TermEnd,
			NoticeWindowDays: f.fields.NoticeWindowDays,
			AutoRenew:        brief.Ptr(f.fields.AutoRenew),
			Citations:        brief.Cite(f.docs.contract, brief.SpanTerm),
		},
		Pricing: brief.Pricing{
			AnnualSpendUSD:  f.invoices.AnnualSpendUSD,
			UpliftClausePct: f.fields.UpliftPct,
			Citations:       brief.Cite(f.docs.invoices, brief.SpanPricing),
		},
		Usage: brief.UsageInsights{
			AllocatedSeats: f.usage.AllocatedSeats,
			ActiveSeats:    f.usage.ActiveSeats,
			DeltaPercent:   f.usage.DeltaPercent,
			Citations:      brief.Cite(f.docs.usage, brief.SpanUsage),
		},
		RiskFlags: brief.RiskFlags{
			AutoRenewSoon:        hasNotice && notice <= autoRenewWindowDays,
			LiabilityCapMultiple: f.fields.LiabilityCapMultiple,
			DPAStatus:            f.fields.DPAStatus,
			PIIRisk:              brief.Ptr("low"),
			Citations:            brief.Cite(f.docs.contract, brief.SpanRisk),
		},
		NegotiationPlan: negotiationPlan(f),
	}
}

// negotiationPlan derives the negotiating position from the usage delta.
// An unknown delta counts as zero.
func negotiationPlan(f facts) brief.NegotiationPlan {
	delta, _ := f.usage.Delta()

	target := 5.0
	if delta < -10 {
		target = 10
	}

	levers := []string{"Usage steady"}
	if delta < 0 {
		levers[0] = "Usage below contracted seats"
	}
	if uplift, ok := f.fields.Uplift(); ok && uplift != 0 {
		levers = append(levers, "Seek uplift waiver")
	}
	levers = append(levers, "Consider multi-year stabilization")

	return brief.NegotiationPlan{
		TargetDiscountPct: brief.Ptr(target),
		WalkawayDeltaPct:  brief.Ptr(target + 5),
		Levers:            levers,
		Citations:         brief.Cite(f.docs.contract, brief.SpanNegotiation),
	}
}

// fallbackEmail is the templated outreach email used when no model is
// available or the model reply is unusable.
func fallbackEmail(vendorID string, f facts) brief.DraftEmail {
	delta, _ := f.usage.Delta()
	spend, _ := f.invoices.Spend()
	return brief.DraftEmail{
		Subject: vendorID + " renewal discussion",
		Body: "Hi " + titleCase(vendorID) + " team,\n\n" +
			"We're preparing for the upcoming renewal. Current annual spend is $" + formatUSD(spend) +
			" and usage is " + formatPct(delta) + "% " + direction(delta) + " contracted seats.\n" +
			"We'd like to explore a pricing refresh that aligns with actual adoption while keeping the partnership strong.\n\n" +
			"Let us know a good time to connect in the next week.\n\nThanks,\nRenewal Desk",
	}
}

// titleCase upper-cases the first letter of every letter run and
// lower-cases the rest: "acme_corp" becomes "Acme_Corp".
func titleCase(s string) string {
	out := make([]rune, 0, len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		out = append(out, r)
	}
	return string(out)
}
