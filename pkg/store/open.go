package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Open opens a journal archive for the given driver ("postgres" or
// "sqlite") and DSN, creating the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*SQLJournal, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", driver, err)
	}
	j := NewSQLJournal(db)
	if err := j.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return j, nil
}

// Close releases the underlying database handle.
func (s *SQLJournal) Close() error {
	return s.db.Close()
}
