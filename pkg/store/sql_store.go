// Package store persists the domain event journal through database/sql.
//
// The engine itself is an in-memory state machine; the store is its durable
// audit trail. Both Postgres (lib/pq) and SQLite (modernc.org/sqlite) are
// supported via the standard drivers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/optoutdao/engine/pkg/events"
)

// SQLJournal archives journal entries into a SQL database.
type SQLJournal struct {
	db *sql.DB
}

// NewSQLJournal wraps an open database handle.
func NewSQLJournal(db *sql.DB) *SQLJournal {
	return &SQLJournal{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	sequence BIGINT PRIMARY KEY,
	event_type TEXT NOT NULL,
	actor TEXT,
	content_hash TEXT NOT NULL,
	prev_hash TEXT NOT NULL,
	ts TIMESTAMP NOT NULL,
	data TEXT NOT NULL
);
`

// Init creates the journal table if it does not exist.
func (s *SQLJournal) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Append stores one journal entry. The primary key on sequence makes
// re-archival of the same entry fail loudly instead of silently forking the
// chain.
func (s *SQLJournal) Append(ctx context.Context, e events.Entry) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("store: marshal entry %d: %w", e.Sequence, err)
	}
	query := `
		INSERT INTO journal (sequence, event_type, actor, content_hash, prev_hash, ts, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		e.Sequence, string(e.Type), e.Actor, e.ContentHash, e.PrevHash, e.Timestamp, string(data),
	)
	return err
}

// Archive satisfies the engine's archiver hook.
func (s *SQLJournal) Archive(e events.Entry) error {
	return s.Append(context.Background(), e)
}

// Load returns all archived entries in sequence order.
func (s *SQLJournal) Load(ctx context.Context) ([]events.Entry, error) {
	query := `SELECT sequence, event_type, actor, content_hash, prev_hash, ts, data FROM journal ORDER BY sequence`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]events.Entry, 0)
	for rows.Next() {
		var (
			e       events.Entry
			typ     string
			ts      time.Time
			rawData string
		)
		if err := rows.Scan(&e.Sequence, &typ, &e.Actor, &e.ContentHash, &e.PrevHash, &ts, &rawData); err != nil {
			return nil, err
		}
		e.Type = events.Type(typ)
		e.Timestamp = ts
		if err := json.Unmarshal([]byte(rawData), &e.Data); err != nil {
			return nil, fmt.Errorf("store: unmarshal entry %d: %w", e.Sequence, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of archived entries.
func (s *SQLJournal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal`).Scan(&n)
	return n, err
}
