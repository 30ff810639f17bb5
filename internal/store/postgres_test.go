package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewFromDB(sqlxDB), mock
}

func TestPostgresActiveTrackersForUserQueriesExpectedShape(t *testing.T) {
	p, mock := newMockPostgres(t)

	rows := sqlmock.NewRows([]string{"id", "owner", "type", "name", "frequency", "check_time", "active", "created_at"}).
		AddRow("t1", "u1", "habit", "Exercise", "daily", "19:00", true, time.Now())

	mock.ExpectQuery("SELECT id, owner, type, name, frequency, check_time, active, created_at").
		WithArgs("u1").
		WillReturnRows(rows)

	out, err := p.ActiveTrackersForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Exercise", out[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRateCardCommitsBothStatementsInOneTransaction(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO review_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE srs_cards SET").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := p.RateCard(context.Background(), cardFixture(), historyFixture())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRateCardRollsBackOnHistoryInsertFailure(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO review_history").WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := p.RateCard(context.Background(), cardFixture(), historyFixture())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
