// Package store persists uploaded evidence and per-vendor manifests and
// resolves the documents a brief request reads.
//
// Two backends implement Store: FSStore keeps files under a local data
// directory and MinioStore keeps objects in an S3-compatible bucket.
// Manifests map a document label (contract, invoices, usage) to the
// reference returned by StoreFile.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

// Errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidVendorID = errors.New("invalid vendor id")
	ErrInvalidLabel    = errors.New("invalid document label")
	ErrNoFiles         = errors.New("no files to ingest")
)

const manifestName = "manifest.json"

var vendorIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// Manifest maps a document label to a stored reference.
type Manifest map[string]string

// Store is an object and manifest store.
type Store interface {
	LoadManifest(ctx context.Context, vendorID string) (Manifest, error)
	SaveManifest(ctx context.Context, vendorID string, m Manifest) error
	StoreFile(ctx context.Context, vendorID, filename string, data []byte) (string, error)
	ReadFile(ctx context.Context, ref string) ([]byte, error)
	Bucket() string
}

// ValidateVendorID rejects ids that could escape the vendor directory.
func ValidateVendorID(vendorID string) error {
	if !vendorIDPattern.MatchString(vendorID) || vendorID == "." || vendorID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidVendorID, vendorID)
	}
	return nil
}

// cleanFilename strips directories from an uploaded filename.
func cleanFilename(name string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "upload"
	}
	return base
}
