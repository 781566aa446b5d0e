package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"           // postgres driver, registered for database/sql
	_ "modernc.org/sqlite"          // sqlite driver, registered for database/sql
)

// OpenSQLiteIndex opens (creating if absent) a SQLite-backed Index at
// path. This is "lite mode": the default when DATABASE_URL is unset,
// mirroring a lite-mode-vs-Postgres dispatch selected by whether a DSN is configured.
func OpenSQLiteIndex(ctx context.Context, path string) (*SQLIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open sqlite index: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("auditlog: ping sqlite index: %w", err)
	}
	return NewSQLIndex(ctx, db)
}

// OpenPostgresIndex opens a Postgres-backed Index at dsn, retrying the
// initial connection with exponential backoff — the JSONL append path
// never backs off, only this optional secondary index's reconnect.
func OpenPostgresIndex(ctx context.Context, dsn string) (*SQLIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open postgres index: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	pingOp := func() (struct{}, error) {
		if err := db.PingContext(ctx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}
	if _, err := backoff.Retry(ctx, pingOp, backoff.WithBackOff(b), backoff.WithMaxTries(uint(5))); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("auditlog: connect postgres index after retries: %w", err)
	}
	return NewSQLIndex(ctx, db)
}
