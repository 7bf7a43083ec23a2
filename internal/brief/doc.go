// Package brief defines the renewal brief schema and the citation validator.
//
// A brief has exactly five sections, modelled as the closed Section
// enumeration. Every section carries a citation list; a section "has
// evidence" iff that list is non-empty. The validator enforces the
// fail-closed rule: no domain field reaches a caller with a non-null value
// unless its section is cited.
//
//	missing := brief.MissingCitationSections(sections)
//	sections = brief.ApplyFailClosed(sections, missing)
//	ratio := brief.CoverageRatio(sections)
package brief
