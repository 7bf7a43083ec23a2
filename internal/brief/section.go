package brief

import "fmt"

// Section identifies one of the five brief sections.
type Section int

const (
	SectionRenewalTerms Section = iota
	SectionPricing
	SectionUsage
	SectionRiskFlags
	SectionNegotiationPlan
)

// sectionCount is the number of sections in a brief.
const sectionCount = 5

// AllSections returns the sections in enumeration order.
func AllSections() []Section {
	return []Section{
		SectionRenewalTerms,
		SectionPricing,
		SectionUsage,
		SectionRiskFlags,
		SectionNegotiationPlan,
	}
}

// String returns the section's JSON field name.
func (s Section) String() string {
	switch s {
	case SectionRenewalTerms:
		return "renewal_terms"
	case SectionPricing:
		return "pricing"
	case SectionUsage:
		return "usage"
	case SectionRiskFlags:
		return "risk_flags"
	case SectionNegotiationPlan:
		return "negotiation_plan"
	}
	return fmt.Sprintf("Section(%d)", int(s))
}

// SectionNames maps sections to their field names.
func SectionNames(sections []Section) []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.String()
	}
	return names
}

// Citations returns the citation list of sec.
func (s Sections) Citations(sec Section) []Citation {
	return s.citations(sec)
}

func (s *Sections) citations(sec Section) []Citation {
	switch sec {
	case SectionRenewalTerms:
		return s.RenewalTerms.Citations
	case SectionPricing:
		return s.Pricing.Citations
	case SectionUsage:
		return s.Usage.Citations
	case SectionRiskFlags:
		return s.RiskFlags.Citations
	case SectionNegotiationPlan:
		return s.NegotiationPlan.Citations
	}
	panic(fmt.Sprintf("brief: unknown section %d", int(sec)))
}

func (s *Sections) setCitations(sec Section, citations []Citation) {
	switch sec {
	case SectionRenewalTerms:
		s.RenewalTerms.Citations = citations
	case SectionPricing:
		s.Pricing.Citations = citations
	case SectionUsage:
		s.Usage.Citations = citations
	case SectionRiskFlags:
		s.RiskFlags.Citations = citations
	case SectionNegotiationPlan:
		s.NegotiationPlan.Citations = citations
	default:
		panic(fmt.Sprintf("brief: unknown section %d", int(sec)))
	}
}

// reset replaces sec with its zero-valued, uncited default.
func (s *Sections) reset(sec Section) {
	switch sec {
	case SectionRenewalTerms:
		s.RenewalTerms = RenewalTerms{Citations: []Citation{}}
	case SectionPricing:
		s.Pricing = Pricing{Citations: []Citation{}}
	case SectionUsage:
		s.Usage = UsageInsights{Citations: []Citation{}}
	case SectionRiskFlags:
		s.RiskFlags = RiskFlags{Citations: []Citation{}}
	case SectionNegotiationPlan:
		s.NegotiationPlan = NegotiationPlan{Levers: []string{}, Citations: []Citation{}}
	default:
		panic(fmt.Sprintf("brief: unknown section %d", int(sec)))
	}
}
