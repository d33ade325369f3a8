package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(t *testing.T, s *Store) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.CreateSession(context.Background(), models.Session{ID: id, Name: "quiz night", CreatedAt: time.Now()})
		return err
	})
	require.NoError(t, err)
	return id
}

func TestFailedUnitLeavesNoTrace(t *testing.T) {
	s := New()
	ctx := context.Background()
	sessionID := seedSession(t, s)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.CreateParticipant(ctx, models.Participant{ID: uuid.New(), SessionID: sessionID, Username: "ann"}); err != nil {
			return err
		}
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return err
		}
		sess.Status = models.SessionStatusRunning
		if _, err := tx.UpdateSessionLifecycle(ctx, *sess); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_ = s.View(ctx, func(tx store.Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusDraft, sess.Status)

		ps, err := tx.ListParticipants(ctx, sessionID)
		require.NoError(t, err)
		assert.Empty(t, ps)
		return nil
	})
}

func TestLockSessionSerializesUnits(t *testing.T) {
	s := New()
	ctx := context.Background()
	sessionID := seedSession(t, s)

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(tx store.Tx) error {
				if _, err := tx.LockSession(ctx, sessionID); err != nil {
					return err
				}
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestLockSessionHonoursContext(t *testing.T) {
	s := New()
	sessionID := seedSession(t, s)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.InTx(context.Background(), func(tx store.Tx) error {
			_, err := tx.LockSession(context.Background(), sessionID)
			close(held)
			<-done
			return err
		})
	}()
	<-held
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.LockSession(ctx, sessionID)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueHeadOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	sessionID := seedSession(t, s)
	questionID := uuid.New()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var first, second, third uuid.UUID
	err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreateQuestion(ctx, models.Question{ID: questionID, SessionID: sessionID, Text: "2+2?", QuestionType: models.QuestionTypeVerbal})
		require.NoError(t, err)

		add := func(pos int, at time.Time) uuid.UUID {
			p, err := tx.CreateParticipant(ctx, models.Participant{ID: uuid.New(), SessionID: sessionID, Username: "p"})
			require.NoError(t, err)
			_, err = tx.InsertQueueEntry(ctx, models.QueueEntry{
				ID: uuid.New(), SessionID: sessionID, QuestionID: questionID,
				ParticipantID: p.ID, Position: pos, JoinedAt: at,
			})
			require.NoError(t, err)
			return p.ID
		}
		third = add(2, base)
		second = add(1, base.Add(time.Second))
		first = add(1, base)
		return nil
	})
	require.NoError(t, err)

	_ = s.View(ctx, func(tx store.Tx) error {
		head, err := tx.GetQueueHead(ctx, sessionID, questionID)
		require.NoError(t, err)
		assert.Equal(t, first, head.ParticipantID)

		views, err := tx.ListActiveQueue(ctx, sessionID, questionID)
		require.NoError(t, err)
		require.Len(t, views, 3)
		assert.Equal(t, []uuid.UUID{first, second, third},
			[]uuid.UUID{views[0].ParticipantID, views[1].ParticipantID, views[2].ParticipantID})

		entry, err := tx.GetActiveEntry(ctx, sessionID, questionID, third)
		require.NoError(t, err)
		ahead, err := tx.CountEntriesAhead(ctx, *entry)
		require.NoError(t, err)
		assert.Equal(t, 2, ahead)

		next, err := tx.NextQueuePosition(ctx, sessionID, questionID)
		require.NoError(t, err)
		assert.Equal(t, 3, next)
		return nil
	})
}

func TestLiveEntryIsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	sessionID := seedSession(t, s)
	questionID := uuid.New()
	participantID := uuid.New()

	err := s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreateQuestion(ctx, models.Question{ID: questionID, SessionID: sessionID, Text: "q", QuestionType: models.QuestionTypeVerbal})
		require.NoError(t, err)
		_, err = tx.CreateParticipant(ctx, models.Participant{ID: participantID, SessionID: sessionID, Username: "p"})
		require.NoError(t, err)

		entry := models.QueueEntry{ID: uuid.New(), SessionID: sessionID, QuestionID: questionID, ParticipantID: participantID}
		_, err = tx.InsertQueueEntry(ctx, entry)
		require.NoError(t, err)

		entry.ID = uuid.New()
		_, err = tx.InsertQueueEntry(ctx, entry)
		return err
	})

	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestViewRejectsWrites(t *testing.T) {
	s := New()
	sessionID := seedSession(t, s)

	err := s.View(context.Background(), func(tx store.Tx) error {
		return tx.SetQuestionClosed(context.Background(), sessionID, false)
	})
	assert.ErrorIs(t, err, errReadOnly)
}
