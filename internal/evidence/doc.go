// Package evidence extracts structured facts from vendor evidence.
//
// Contract text goes through an ordered table of independent,
// case-insensitive rules, each populating at most one field of Fields.
// Invoice and usage CSVs are reduced to InvoiceSummary and UsageSummary.
// Missing or malformed data leaves fields unset and never returns an
// error.
package evidence
