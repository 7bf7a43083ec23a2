package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FSStore keeps vendor files under <root>/<vendor_id>/.
type FSStore struct {
	root   string
	bucket string
}

// NewFSStore creates a filesystem store rooted at root. bucket is only
// reported back to ingest callers.
func NewFSStore(root, bucket string) *FSStore {
	return &FSStore{root: root, bucket: bucket}
}

// Bucket returns the configured bucket name.
func (s *FSStore) Bucket() string {
	return s.bucket
}

func (s *FSStore) vendorDir(vendorID string) (string, error) {
	if err := ValidateVendorID(vendorID); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, vendorID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating vendor directory: %w", err)
	}
	return dir, nil
}

// StoreFile writes data and returns its path.
func (s *FSStore) StoreFile(_ context.Context, vendorID, filename string, data []byte) (string, error) {
	dir, err := s.vendorDir(vendorID)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, cleanFilename(filename))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", target, err)
	}
	return target, nil
}

// ReadFile reads a path previously returned by StoreFile.
func (s *FSStore) ReadFile(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(ref)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return data, err
}

// LoadManifest returns the vendor manifest, empty when none exists.
func (s *FSStore) LoadManifest(_ context.Context, vendorID string) (Manifest, error) {
	dir, err := s.vendorDir(vendorID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest for %s: %w", vendorID, err)
	}
	return m, nil
}

// SaveManifest writes the vendor manifest as indented JSON.
func (s *FSStore) SaveManifest(_ context.Context, vendorID string, m Manifest) error {
	dir, err := s.vendorDir(vendorID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
