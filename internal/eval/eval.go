// Package eval runs golden cases through the brief orchestrator and
// compares the results with expected field values.
package eval

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
	"github.com/fyrsmithlabs/renewaldesk/internal/evidence"
	"github.com/fyrsmithlabs/renewaldesk/internal/synthesis"
)

// Case outcomes.
const (
	StatusPassed            = "passed"
	StatusFailed            = "failed"
	StatusInjectionDetected = "injection_detected"
	StatusSmokePassed       = "smoke_passed"
)

// DefaultConcurrency bounds the number of cases run at once.
const DefaultConcurrency = 4

// Keys of an expected record that are not brief sections.
const (
	keyCaseID           = "case_id"
	keyExpectedBehavior = "expected_behavior"
)

// Inputs are the document paths of a case. Blank paths mean the document
// is absent.
type Inputs struct {
	ContractPath string `json:"contract_path,omitempty"`
	InvoicesPath string `json:"invoices_path,omitempty"`
	UsagePath    string `json:"usage_path,omitempty"`
}

// Case is one golden input. VendorID defaults to CaseID.
type Case struct {
	CaseID   string `json:"case_id"`
	VendorID string `json:"vendor_id,omitempty"`
	Inputs   Inputs `json:"inputs"`
}

// Expected holds the expected values of a case, keyed by section name,
// plus case_id and an optional expected_behavior.
type Expected map[string]any

// Behavior returns the expected_behavior value, if any.
func (e Expected) Behavior() string {
	s, _ := e[keyExpectedBehavior].(string)
	return s
}

// Result is the outcome of one case.
type Result struct {
	CaseID           string   `json:"case_id"`
	VendorID         string   `json:"vendor_id,omitempty"`
	Status           string   `json:"status"`
	Details          string   `json:"details,omitempty"`
	ExpectedBehavior string   `json:"expected_behavior,omitempty"`
	Passed           *bool    `json:"passed,omitempty"`
	Mismatches       []string `json:"mismatches,omitempty"`
	CitationGaps     []string `json:"citation_gaps,omitempty"`
}

// Summary counts results by status.
type Summary struct {
	Total             int `json:"total"`
	Passed            int `json:"passed"`
	Failed            int `json:"failed"`
	InjectionDetected int `json:"injection_detected"`
	SmokePassed       int `json:"smoke_passed"`
}

// Report is the file written after a run.
type Report struct {
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}

// Generator produces briefs. *synthesis.Orchestrator implements it.
type Generator interface {
	Generate(ctx context.Context, vendorID string, bundle evidence.Bundle) (*brief.Brief, error)
}

// Harness runs cases against a generator.
type Harness struct {
	gen         Generator
	baseDir     string
	concurrency int
	smoke       bool
	logger      *zap.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithBaseDir resolves relative input paths against dir.
func WithBaseDir(dir string) Option {
	return func(h *Harness) { h.baseDir = dir }
}

// WithConcurrency sets how many cases run at once.
func WithConcurrency(n int) Option {
	return func(h *Harness) { h.concurrency = n }
}

// WithSmoke only checks that each case's inputs can be read.
func WithSmoke(smoke bool) Option {
	return func(h *Harness) { h.smoke = smoke }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// NewHarness creates a harness. gen may be nil in smoke mode.
func NewHarness(gen Generator, opts ...Option) *Harness {
	h := &Harness{gen: gen, concurrency: DefaultConcurrency, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	if h.concurrency <= 0 {
		h.concurrency = DefaultConcurrency
	}
	return h
}

// Run evaluates every case and returns results in case order.
func (h *Harness) Run(ctx context.Context, cases []Case, expected map[string]Expected) (Report, error) {
	if !h.smoke && h.gen == nil {
		return Report{}, errors.New("eval: generator required outside smoke mode")
	}

	results := make([]Result, len(cases))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, c := range cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = h.evaluate(ctx, c, expected[c.CaseID])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return Report{Results: results, Summary: summarize(results)}, nil
}

func (h *Harness) evaluate(ctx context.Context, c Case, exp Expected) Result {
	bundle, err := h.load(c.Inputs)
	if err != nil {
		h.logger.Warn("eval case inputs unreadable", zap.String("case_id", c.CaseID), zap.Error(err))
		return Result{CaseID: c.CaseID, Status: StatusFailed, Details: err.Error()}
	}
	if h.smoke {
		return Result{CaseID: c.CaseID, Status: StatusSmokePassed, Details: "Files parsed"}
	}

	vendorID := c.VendorID
	if vendorID == "" {
		vendorID = c.CaseID
	}

	b, err := h.gen.Generate(ctx, vendorID, bundle)
	switch {
	case errors.Is(err, synthesis.ErrInjectionDetected):
		passed := exp.Behavior() == StatusInjectionDetected
		return Result{
			CaseID:           c.CaseID,
			VendorID:         vendorID,
			Status:           StatusInjectionDetected,
			ExpectedBehavior: exp.Behavior(),
			Passed:           &passed,
		}
	case err != nil:
		return Result{CaseID: c.CaseID, VendorID: vendorID, Status: StatusFailed, Details: err.Error()}
	}

	mismatches, err := Diff(b, exp)
	if err != nil {
		return Result{CaseID: c.CaseID, VendorID: vendorID, Status: StatusFailed, Details: err.Error()}
	}
	status := StatusPassed
	if len(mismatches) > 0 {
		status = StatusFailed
	}
	return Result{
		CaseID:       c.CaseID,
		VendorID:     vendorID,
		Status:       status,
		Mismatches:   mismatches,
		CitationGaps: brief.SectionNames(brief.MissingCitationSections(b.Sections)),
	}
}

func (h *Harness) load(in Inputs) (evidence.Bundle, error) {
	read := func(kind evidence.Kind, path string) (evidence.Document, error) {
		if path == "" {
			return evidence.Document{ID: kind.String()}, nil
		}
		if !filepath.IsAbs(path) && h.baseDir != "" {
			path = filepath.Join(h.baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return evidence.Document{}, fmt.Errorf("reading %s input: %w", kind, err)
		}
		return evidence.Document{ID: path, Text: strings.ToValidUTF8(string(data), "")}, nil
	}

	var b evidence.Bundle
	var err error
	if b.Contract, err = read(evidence.KindContract, in.ContractPath); err != nil {
		return b, err
	}
	if b.Invoices, err = read(evidence.KindInvoices, in.InvoicesPath); err != nil {
		return b, err
	}
	if b.Usage, err = read(evidence.KindUsage, in.UsagePath); err != nil {
		return b, err
	}
	return b, nil
}

// Diff compares b with the expected field values. Values are compared by
// their rendered string, so 10 and 10.0 match.
func Diff(b *brief.Brief, exp Expected) ([]string, error) {
	if len(exp) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding brief: %w", err)
	}
	var actual map[string]any
	if err := json.Unmarshal(raw, &actual); err != nil {
		return nil, fmt.Errorf("decoding brief: %w", err)
	}

	keys := make([]string, 0, len(exp))
	for k := range exp {
		if k != keyCaseID && k != keyExpectedBehavior {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var mismatches []string
	for _, section := range keys {
		want := exp[section]
		got := actual[section]
		fields, ok := want.(map[string]any)
		if !ok {
			if render(got) != render(want) {
				mismatches = append(mismatches, fmt.Sprintf("%s: expected %s, got %s", section, render(want), render(got)))
			}
			continue
		}

		gotFields, _ := got.(map[string]any)
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			var gotVal any
			if gotFields != nil {
				gotVal = gotFields[name]
			}
			if render(gotVal) != render(fields[name]) {
				mismatches = append(mismatches, fmt.Sprintf("%s.%s: expected %s, got %s",
					section, name, render(fields[name]), render(gotVal)))
			}
		}
	}
	return mismatches, nil
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		out, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(out)
	}
}

func summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusInjectionDetected:
			s.InjectionDetected++
		case StatusSmokePassed:
			s.SmokePassed++
		}
	}
	return s
}

// LoadCases reads a JSONL file of cases.
func LoadCases(path string) ([]Case, error) {
	return loadJSONL[Case](path)
}

// LoadExpected reads a JSONL file of expected records keyed by case id.
// A missing file yields an empty map.
func LoadExpected(path string) (map[string]Expected, error) {
	records, err := loadJSONL[Expected](path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Expected{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]Expected, len(records))
	for _, r := range records {
		id, _ := r[keyCaseID].(string)
		out[id] = r
	}
	return out, nil
}

func loadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(text, &v); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

// WriteReport writes r as indented JSON, creating parent directories.
func WriteReport(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
