package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/greywatch/driftwatch/pkg/chain"
)

// Index is an optional secondary search index over log entries, used to
// make search/get_entries fast at scale. The JSONL file remains the
// source of truth; an Index is always rebuildable from it via Reindex and
// is never consulted to answer VerifyIntegrity.
type Index interface {
	Reindex(entries []chain.Entry) error
	Index(entry chain.Entry) error
	Close() error
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS log_entries (
	entry_hash    TEXT PRIMARY KEY,
	previous_hash TEXT NOT NULL,
	timestamp     TEXT NOT NULL,
	data          TEXT NOT NULL,
	seq           INTEGER NOT NULL
);
`

// SQLIndex is a database/sql-backed Index usable with either
// modernc.org/sqlite (lite mode, the default) or lib/pq (when
// DATABASE_URL is configured) — the statements below are standard SQL
// and run unchanged against either driver.
type SQLIndex struct {
	db *sql.DB
}

// NewSQLIndex wraps an already-opened *sql.DB (sqlite or postgres) and
// ensures the index table exists.
func NewSQLIndex(ctx context.Context, db *sql.DB) (*SQLIndex, error) {
	if _, err := db.ExecContext(ctx, indexSchema); err != nil {
		return nil, fmt.Errorf("auditlog: init index schema: %w", err)
	}
	return &SQLIndex{db: db}, nil
}

// Reindex truncates and rebuilds the index from the authoritative
// in-memory entry slice recovered from the JSONL file.
func (s *SQLIndex) Reindex(entries []chain.Entry) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("auditlog: begin reindex: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM log_entries"); err != nil {
		return fmt.Errorf("auditlog: clear index: %w", err)
	}
	for i, e := range entries {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("auditlog: marshal entry %d for index: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO log_entries (entry_hash, previous_hash, timestamp, data, seq) VALUES ($1, $2, $3, $4, $5)",
			e.EntryHash, e.PreviousHash, e.Timestamp, string(data), i,
		); err != nil {
			return fmt.Errorf("auditlog: insert entry %d into index: %w", i, err)
		}
	}
	return tx.Commit()
}

// Index inserts a single newly-appended entry.
func (s *SQLIndex) Index(entry chain.Entry) error {
	ctx := context.Background()
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_entries").Scan(&count); err != nil {
		return fmt.Errorf("auditlog: count index: %w", err)
	}
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("auditlog: marshal entry for index: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO log_entries (entry_hash, previous_hash, timestamp, data, seq) VALUES ($1, $2, $3, $4, $5)",
		entry.EntryHash, entry.PreviousHash, entry.Timestamp, string(data), count,
	)
	if err != nil {
		return fmt.Errorf("auditlog: insert into index: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLIndex) Close() error {
	return s.db.Close()
}
