package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/renewaldesk/internal/evidence"
)

// Sample file names inside the examples directory.
const (
	SampleContract = "sample_contract.pdf"
	SampleInvoices = "invoices.csv"
	SampleUsage    = "usage.csv"
)

func sampleName(k evidence.Kind) string {
	switch k {
	case evidence.KindInvoices:
		return SampleInvoices
	case evidence.KindUsage:
		return SampleUsage
	default:
		return SampleContract
	}
}

// Resolve loads the vendor's documents. Each kind comes from the
// manifest when its reference is readable, otherwise from the matching
// sample in examplesDir, otherwise it is empty with the kind label as id.
func Resolve(ctx context.Context, s Store, vendorID, examplesDir string) (evidence.Bundle, error) {
	manifest, err := s.LoadManifest(ctx, vendorID)
	if err != nil {
		return evidence.Bundle{}, fmt.Errorf("loading manifest: %w", err)
	}

	var docs [3]evidence.Document
	for i, kind := range evidence.Kinds() {
		docs[i] = resolveOne(ctx, s, manifest[kind.String()], kind, examplesDir)
	}
	return evidence.Bundle{Contract: docs[0], Invoices: docs[1], Usage: docs[2]}, nil
}

func resolveOne(ctx context.Context, s Store, ref string, kind evidence.Kind, examplesDir string) evidence.Document {
	if ref != "" {
		if data, err := s.ReadFile(ctx, ref); err == nil {
			return evidence.Document{ID: ref, Text: decodeText(data)}
		}
	}
	if examplesDir != "" {
		path := filepath.Join(examplesDir, sampleName(kind))
		if data, err := os.ReadFile(path); err == nil {
			return evidence.Document{ID: path, Text: decodeText(data)}
		}
	}
	return evidence.Document{ID: kind.String()}
}

// Samples loads all three sample files, failing with ErrNotFound when
// any is missing.
func Samples(examplesDir string) (evidence.Bundle, error) {
	var docs [3]evidence.Document
	for i, kind := range evidence.Kinds() {
		path := filepath.Join(examplesDir, sampleName(kind))
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return evidence.Bundle{}, fmt.Errorf("%w: sample files", ErrNotFound)
			}
			return evidence.Bundle{}, fmt.Errorf("reading %s: %w", path, err)
		}
		docs[i] = evidence.Document{ID: path, Text: decodeText(data)}
	}
	return evidence.Bundle{Contract: docs[0], Invoices: docs[1], Usage: docs[2]}, nil
}

// decodeText drops invalid UTF-8 sequences.
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

// Upload is one uploaded document.
type Upload struct {
	Label    string
	Filename string
	Data     []byte
}

// Ingest stores each upload as <label>_<filename> and merges the
// resulting references into the vendor manifest.
func Ingest(ctx context.Context, s Store, vendorID string, uploads []Upload) (Manifest, error) {
	if err := ValidateVendorID(vendorID); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}

	saved := Manifest{}
	for _, u := range uploads {
		if !validLabel(u.Label) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, u.Label)
		}
		ref, err := s.StoreFile(ctx, vendorID, u.Label+"_"+cleanFilename(u.Filename), u.Data)
		if err != nil {
			return nil, fmt.Errorf("storing %s: %w", u.Label, err)
		}
		saved[u.Label] = ref
	}

	manifest, err := s.LoadManifest(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	for label, ref := range saved {
		manifest[label] = ref
	}
	if err := s.SaveManifest(ctx, vendorID, manifest); err != nil {
		return nil, fmt.Errorf("saving manifest: %w", err)
	}
	return manifest, nil
}

func validLabel(label string) bool {
	for _, k := range evidence.Kinds() {
		if label == k.String() {
			return true
		}
	}
	return false
}

// isNotFound reports whether err wraps ErrNotFound.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
