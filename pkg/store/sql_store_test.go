package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optoutdao/engine/pkg/events"
)

func testEntry() events.Entry {
	return events.Entry{
		Sequence:    1,
		Type:        events.BrokerSubmitted,
		Actor:       "u1",
		ContentHash: "sha256:abc",
		PrevHash:    "genesis",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Data:        map[string]any{"broker_id": float64(1)},
	}
}

func TestInit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS journal").WillReturnResult(sqlmock.NewResult(0, 0))

	j := NewSQLJournal(db)
	require.NoError(t, j.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := testEntry()
	mock.ExpectExec("INSERT INTO journal").
		WithArgs(e.Sequence, string(e.Type), e.Actor, e.ContentHash, e.PrevHash, e.Timestamp, `{"broker_id":1}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	j := NewSQLJournal(db)
	require.NoError(t, j.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := testEntry()
	rows := sqlmock.NewRows([]string{"sequence", "event_type", "actor", "content_hash", "prev_hash", "ts", "data"}).
		AddRow(e.Sequence, string(e.Type), e.Actor, e.ContentHash, e.PrevHash, e.Timestamp, `{"broker_id":1}`)
	mock.ExpectQuery("SELECT sequence, event_type, actor, content_hash, prev_hash, ts, data FROM journal").
		WillReturnRows(rows)

	j := NewSQLJournal(db)
	got, err := j.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
}

func TestCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	j := NewSQLJournal(db)
	n, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
}
