package brief

import "math"

// MissingCitationSections returns the sections whose citation list is
// empty, in enumeration order.
func MissingCitationSections(s Sections) []Section {
	var missing []Section
	for _, sec := range AllSections() {
		if len(s.citations(sec)) == 0 {
			missing = append(missing, sec)
		}
	}
	return missing
}

// CoverageRatio is the share of cited sections, rounded to two decimals.
func CoverageRatio(s Sections) float64 {
	missing := len(MissingCitationSections(s))
	return Round(float64(sectionCount-missing)/sectionCount, 2)
}

// ApplyFailClosed replaces every section in missing with its empty default.
// Values of uncited sections are dropped rather than kept without evidence.
func ApplyFailClosed(s Sections, missing []Section) Sections {
	out := s
	for _, sec := range missing {
		out.reset(sec)
	}
	return out
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
