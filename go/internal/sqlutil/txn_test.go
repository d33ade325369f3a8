package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueries struct {
	tx *sql.Tx
}

func newFake(tx *sql.Tx) *fakeQueries { return &fakeQueries{tx: tx} }

func TestRunCommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE quiz_sessions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = Run(context.Background(), db, newFake, func(q *fakeQueries) error {
		_, err := q.tx.ExecContext(context.Background(), "UPDATE quiz_sessions SET status = 'ready'")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = Run(context.Background(), db, newFake, func(q *fakeQueries) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = Run(context.Background(), db, newFake, func(q *fakeQueries) error {
			panic("kaboom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunReportsBeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	called := false
	err = Run(context.Background(), db, newFake, func(q *fakeQueries) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.False(t, called)
}
