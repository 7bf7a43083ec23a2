// Package history persists audit records per vendor in SQLite so past
// briefs can be listed after the in-memory trace store has evicted them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/renewaldesk/internal/audit"
)

// createdAtLayout is fixed width so created_at sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultLimit is the number of records List returns when no limit is given.
const DefaultLimit = 20

const maxLimit = 500

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	request_id TEXT PRIMARY KEY,
	vendor_id  TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_records_vendor
	ON audit_records (vendor_id, created_at DESC);
`

// Store is the SQLite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces rec.
func (s *Store) Put(ctx context.Context, rec audit.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO audit_records (request_id, vendor_id, status, created_at, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.RequestID, rec.VendorID, rec.Status, created.UTC().Format(createdAtLayout), string(payload))
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", rec.RequestID, err)
	}
	return nil
}

// List returns the newest records for vendorID, newest first.
func (s *Store) List(ctx context.Context, vendorID string, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, maxLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM audit_records
		 WHERE vendor_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		vendorID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	records := []audit.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		var rec audit.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decoding history: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
