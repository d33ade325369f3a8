package memstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
)

// activeLocked returns the question's active entries in turn order.
func (t *tx) activeLocked(sessionID, questionID uuid.UUID) []models.QueueEntry {
	var out []models.QueueEntry
	for _, e := range t.s.entries {
		if e.IsActive && e.SessionID == sessionID && e.QuestionID == questionID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.QueueEntry) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return compareUUID(a.ID, b.ID)
	})
	return out
}

func (t *tx) GetActiveEntry(ctx context.Context, sessionID, questionID, participantID uuid.UUID) (*models.QueueEntry, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, e := range t.activeLocked(sessionID, questionID) {
		if e.ParticipantID == participantID {
			return &e, nil
		}
	}
	return nil, notFound("active queue entry for participant", participantID)
}

func (t *tx) GetQueueHead(ctx context.Context, sessionID, questionID uuid.UUID) (*models.QueueEntry, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	active := t.activeLocked(sessionID, questionID)
	if len(active) == 0 {
		return nil, notFound("queue head for question", questionID)
	}
	head := active[0]
	return &head, nil
}

func (t *tx) CountActiveEntries(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return len(t.activeLocked(sessionID, questionID)), nil
}

func (t *tx) NextQueuePosition(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	next := 0
	for _, e := range t.s.entries {
		if e.SessionID == sessionID && e.QuestionID == questionID && e.Position >= next {
			next = e.Position + 1
		}
	}
	return next, nil
}

func (t *tx) InsertQueueEntry(ctx context.Context, e models.QueueEntry) (*models.QueueEntry, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, cur := range t.s.entries {
		if cur.IsActive && cur.SessionID == e.SessionID && cur.QuestionID == e.QuestionID && cur.ParticipantID == e.ParticipantID {
			return nil, fmt.Errorf("insert queue entry for %s: %w", e.ParticipantID, store.ErrConflict)
		}
	}
	e.IsActive = true
	put(t, t.s.entries, e.ID, e)
	return &e, nil
}

func (t *tx) DeactivateEntry(ctx context.Context, id uuid.UUID) error {
	if err := t.write(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	e, ok := t.s.entries[id]
	if !ok || !e.IsActive {
		return notFound("active queue entry", id)
	}
	e.IsActive = false
	put(t, t.s.entries, id, e)
	return nil
}

func (t *tx) DeactivateQuestionEntries(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	n := 0
	for _, e := range t.activeLocked(sessionID, questionID) {
		e.IsActive = false
		put(t, t.s.entries, e.ID, e)
		n++
	}
	return n, nil
}

func (t *tx) DeleteQueueForSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	n := 0
	for id, e := range t.s.entries {
		if e.SessionID == sessionID {
			del(t, t.s.entries, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) ListParticipantActiveEntries(ctx context.Context, participantID uuid.UUID) ([]models.QueueEntry, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	var out []models.QueueEntry
	for _, e := range t.s.entries {
		if e.IsActive && e.ParticipantID == participantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *tx) ListActiveQueue(ctx context.Context, sessionID, questionID uuid.UUID) ([]models.QueueEntryView, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	out := []models.QueueEntryView{}
	for _, e := range t.activeLocked(sessionID, questionID) {
		p, ok := t.s.participants[e.ParticipantID]
		if !ok {
			continue
		}
		view := models.QueueEntryView{
			ID:            e.ID,
			ParticipantID: e.ParticipantID,
			Position:      e.Position,
			JoinedAt:      e.JoinedAt,
			Username:      p.Username,
			GroupName:     p.GroupName,
			Score:         p.Score,
		}
		key := pairKey{participantID: e.ParticipantID, questionID: questionID}
		if a, ok := t.s.answers[key]; ok {
			correct := a.IsCorrect
			view.IsCorrect = &correct
		}
		if v, ok := t.s.verbal[key]; ok {
			if view.IsCorrect == nil && v.IsCorrect != nil {
				correct := *v.IsCorrect
				view.IsCorrect = &correct
			}
			view.WaitingForEvaluation = !v.Graded()
		}
		out = append(out, view)
	}
	return out, nil
}

func (t *tx) CountEntriesAhead(ctx context.Context, e models.QueueEntry) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	n := 0
	for _, cur := range t.activeLocked(e.SessionID, e.QuestionID) {
		if cur.Before(e) {
			n++
		}
	}
	return n, nil
}
