package evidence

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
)

// DateLayouts are tried in order when parsing contract dates.
var DateLayouts = []string{
	"Jan 2 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// Rule populates at most one field of Fields from contract text.
type Rule struct {
	Name  string
	Apply func(text string, f *Fields)
}

var (
	termRe      = regexp.MustCompile(`(?i)effective\s+([\w\s,]+?)\s+(?:through|to)\s+([\w\s,]+?)\.`)
	noticeRe    = regexp.MustCompile(`(?i)notice\s+(\d{1,3})\s+days`)
	upliftRe    = regexp.MustCompile(`(?i)(\d{1,2})%\s+increase`)
	priceRe     = regexp.MustCompile(`\$([0-9,]+)`)
	seatsRe     = regexp.MustCompile(`(?i)licensed\s+for\s+(\d+)\s+seats`)
	liabilityRe = regexp.MustCompile(`(?is)liability.*?(\d+)x`)
)

// DefaultRules returns the contract extraction rules.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "term", Apply: func(text string, f *Fields) {
			m := termRe.FindStringSubmatch(text)
			if m == nil {
				return
			}
			if d, ok := ParseDate(m[1]); ok {
				f.TermStart = &d
			}
			if d, ok := ParseDate(m[2]); ok {
				f.TermEnd = &d
			}
		}},
		{Name: "notice_window", Apply: func(text string, f *Fields) {
			if v, ok := submatchInt(noticeRe, text); ok {
				f.NoticeWindowDays = &v
			}
		}},
		{Name: "auto_renew", Apply: func(text string, f *Fields) {
			f.AutoRenew = strings.Contains(strings.ToLower(text), "auto-renew")
		}},
		{Name: "uplift", Apply: func(text string, f *Fields) {
			if v, ok := submatchFloat(upliftRe, text); ok {
				f.UpliftPct = &v
			}
		}},
		{Name: "stated_price", Apply: func(text string, f *Fields) {
			if v, ok := submatchFloat(priceRe, text); ok {
				f.StatedPrice = &v
			}
		}},
		{Name: "licensed_seats", Apply: func(text string, f *Fields) {
			if v, ok := submatchInt(seatsRe, text); ok {
				f.LicensedSeats = &v
			}
		}},
		{Name: "liability_cap", Apply: func(text string, f *Fields) {
			if v, ok := submatchFloat(liabilityRe, text); ok {
				f.LiabilityCapMultiple = &v
			}
		}},
		{Name: "dpa", Apply: func(text string, f *Fields) {
			lower := strings.ToLower(text)
			if !strings.Contains(lower, "dpa") {
				return
			}
			status := "present"
			if strings.Contains(lower, "separately") {
				status = "missing"
			}
			f.DPAStatus = &status
		}},
	}
}

// Extractor applies a fixed rule table to contract text.
type Extractor struct {
	rules []Rule
}

// NewExtractor creates an extractor. With no rules, DefaultRules is used.
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// Extract runs every rule over text in order.
func (e *Extractor) Extract(text string) Fields {
	var f Fields
	for _, r := range e.rules {
		r.Apply(text, &f)
	}
	return f
}

// ParseDate parses a contract date phrase, dropping commas first.
func ParseDate(value string) (brief.Date, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	for _, layout := range DateLayouts {
		t, err := time.Parse(layout, cleaned)
		if err == nil {
			return brief.NewDate(t.Year(), t.Month(), t.Day()), true
		}
	}
	return brief.Date{}, false
}

func submatchInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

func submatchFloat(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
