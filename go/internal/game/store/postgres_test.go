package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionCols = []string{
	"id", "name", "status", "current_question_index", "is_question_closed",
	"question_duration_sec", "created_at", "started_at", "finished_at",
}

func TestLockSessionUsesRowLock(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM quiz_sessions\s+WHERE id = \$1\s+FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow(id, "quiz", "running", 2, false, 30, now, now, nil))
	mock.ExpectCommit()

	err = NewPostgres(conn).InTx(context.Background(), func(tx Tx) error {
		s, err := tx.LockSession(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 2, s.CurrentQuestionIndex)
		assert.False(t, s.IsQuestionClosed)
		assert.NotNil(t, s.StartedAt)
		assert.Nil(t, s.FinishedAt)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingRowMapsToNotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM participants`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err = NewPostgres(conn).InTx(context.Background(), func(tx Tx) error {
		_, err := tx.GetParticipant(context.Background(), uuid.New())
		return err
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueViolationMapsToConflict(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO queue_entries`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err = NewPostgres(conn).InTx(context.Background(), func(tx Tx) error {
		_, err := tx.InsertQueueEntry(context.Background(), models.QueueEntry{
			ID: uuid.New(), SessionID: uuid.New(), QuestionID: uuid.New(), ParticipantID: uuid.New(),
		})
		return err
	})

	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionOptionsDecodeFromJSON(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	sessionID, questionID, optionID := uuid.New(), uuid.New(), uuid.New()
	options := `[{"id":"` + optionID.String() + `","question_id":"` + questionID.String() + `","text":"Paris","is_correct":true}]`

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM questions q\s+WHERE q.session_id = \$1\s+ORDER BY q.position, q.id\s+OFFSET \$2`).
		WithArgs(sessionID, int32(0)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "text", "image_url", "position", "question_type", "created_at", "options",
		}).AddRow(questionID, sessionID, "Capital of France?", nil, 1, "multiple_choice", time.Now(), []byte(options)))
	mock.ExpectCommit()

	err = NewPostgres(conn).View(context.Background(), func(tx Tx) error {
		q, err := tx.GetQuestionByIndex(context.Background(), sessionID, 0)
		require.NoError(t, err)
		require.Len(t, q.Options, 1)
		assert.Equal(t, optionID, q.Options[0].ID)
		assert.True(t, q.Options[0].IsCorrect)
		assert.Nil(t, q.ImageURL)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, Translate(nil, "session"))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(Translate(fmt.Errorf("get: %w", ErrNotFound), "session")))
	assert.Equal(t, "session not found", apperrors.Message(Translate(ErrNotFound, "session")))
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(Translate(ErrConflict, "answer")))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(Translate(apperrors.Forbidden("not head"), "x")))
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(Translate(sql.ErrConnDone, "lock session")))
}

func TestDeleteQuestionClosesPositionGap(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	sessionID, questionID := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM questions WHERE id = \$1 AND session_id = \$2\s+RETURNING position`).
		WithArgs(questionID, sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(2))
	mock.ExpectExec(`UPDATE questions SET position = position - 1\s+WHERE session_id = \$1 AND position > \$2`).
		WithArgs(sessionID, int32(2)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err = NewPostgres(conn).InTx(context.Background(), func(tx Tx) error {
		return tx.DeleteQuestion(context.Background(), sessionID, questionID)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingQuestionIsNotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM questions`).
		WillReturnRows(sqlmock.NewRows([]string{"position"}))
	mock.ExpectRollback()

	err = NewPostgres(conn).InTx(context.Background(), func(tx Tx) error {
		return tx.DeleteQuestion(context.Background(), uuid.New(), uuid.New())
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAnswersMergesVerbalRows(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	sessionID, participantID := uuid.New(), uuid.New()
	mcID, verbalID, optionID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	cols := []string{
		"id", "participant_id", "username", "group_name", "session_id", "question_id",
		"question_text", "question_type", "option_id", "option_text", "is_correct", "answered_at",
	}
	mock.ExpectBegin()
	mock.ExpectQuery(`UNION ALL`).
		WithArgs(sessionID, nil).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.New(), participantID, "ann", "7B", sessionID, mcID, "2+2?", "multiple_choice", optionID, "4", true, now).
			AddRow(uuid.New(), participantID, "ann", nil, sessionID, verbalID, "Capital?", "verbal", nil, nil, nil, now.Add(time.Second)))
	mock.ExpectCommit()

	var got []models.AnswerHistoryItem
	err = NewPostgres(conn).InTx(context.Background(), func(tx Tx) error {
		got, err = tx.ListAnswers(context.Background(), AnswerFilter{SessionID: &sessionID})
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].OptionID)
	assert.Equal(t, optionID, *got[0].OptionID)
	require.NotNil(t, got[0].IsCorrect)
	assert.True(t, *got[0].IsCorrect)
	require.NotNil(t, got[0].GroupName)
	assert.Equal(t, "7B", *got[0].GroupName)

	assert.Equal(t, models.QuestionTypeVerbal, got[1].QuestionType)
	assert.Nil(t, got[1].OptionID)
	assert.Nil(t, got[1].OptionText)
	assert.Nil(t, got[1].IsCorrect)
	assert.Nil(t, got[1].GroupName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
