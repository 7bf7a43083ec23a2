// Package scrub redacts secrets from evidence text before it is sent to a
// language model, using the Gitleaks rule set.
package scrub

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

const previewLen = 4

// Finding is a detected secret.
type Finding struct {
	RuleID   string
	RuleDesc string
	Line     int
	Match    string
}

// Summary counts redactions without keeping secret values.
type Summary struct {
	TotalSecrets int            `json:"total_secrets"`
	RuleCounts   map[string]int `json:"rule_counts"`
}

// Result is redacted content plus its summary.
type Result struct {
	Content string
	Summary Summary
}

// Options configures a Scrubber.
type Options struct {
	Enabled       bool
	AllowlistPath string
}

// Scrubber detects and redacts secrets. A disabled scrubber returns
// content unchanged.
type Scrubber struct {
	enabled  bool
	mu       sync.Mutex
	detector *detect.Detector
}

// New builds a scrubber with the default Gitleaks rules plus an optional
// TOML allowlist. A missing allowlist file is ignored.
func New(opts Options) (*Scrubber, error) {
	if !opts.Enabled {
		return &Scrubber{}, nil
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating secret detector: %w", err)
	}

	allowlist, err := LoadAllowlist(opts.AllowlistPath)
	if err != nil {
		return nil, err
	}
	if len(allowlist) > 0 {
		applyAllowlist(&detector.Config, allowlist)
	}

	return &Scrubber{enabled: true, detector: detector}, nil
}

// Enabled reports whether the scrubber redacts anything.
func (s *Scrubber) Enabled() bool {
	return s != nil && s.enabled
}

// Detect returns the secrets found in content.
func (s *Scrubber) Detect(content string) []Finding {
	if !s.Enabled() || content == "" {
		return nil
	}

	s.mu.Lock()
	found := s.detector.DetectString(content)
	s.mu.Unlock()

	out := make([]Finding, 0, len(found))
	for _, f := range found {
		if f.Secret == "" {
			continue
		}
		out = append(out, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Line:     f.StartLine,
			Match:    f.Secret,
		})
	}
	return out
}

// Redact replaces every detected secret with a
// [REDACTED:rule-id:preview] marker.
func (s *Scrubber) Redact(content string) Result {
	findings := s.Detect(content)
	summary := Summary{TotalSecrets: len(findings), RuleCounts: map[string]int{}}
	if len(findings) == 0 {
		return Result{Content: content, Summary: summary}
	}

	// Longest first so a secret that contains another is replaced whole.
	sort.SliceStable(findings, func(i, j int) bool {
		return len(findings[i].Match) > len(findings[j].Match)
	})
	for _, f := range findings {
		summary.RuleCounts[f.RuleID]++
		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, preview(f.Match))
		content = strings.ReplaceAll(content, f.Match, marker)
	}
	return Result{Content: content, Summary: summary}
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen]
}

// applyAllowlist adds content patterns as a global Gitleaks allowlist.
// Patterns are validated by LoadAllowlist.
func applyAllowlist(cfg *gitleaksConfig.Config, patterns []string) {
	global := &gitleaksConfig.Allowlist{
		Description: "renewal desk allowlist",
	}
	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, global)
}
