package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
)

func (t *tx) UpsertAnswerRecord(ctx context.Context, r models.AnswerRecord) (*models.AnswerRecord, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.questions[r.QuestionID]; !ok {
		return nil, notFound("question", r.QuestionID)
	}
	key := pairKey{participantID: r.ParticipantID, questionID: r.QuestionID}
	if cur, ok := t.s.answers[key]; ok {
		r.ID = cur.ID
	}
	put(t, t.s.answers, key, r)
	return &r, nil
}

func (t *tx) GetVerbalResponse(ctx context.Context, participantID, questionID uuid.UUID) (*models.VerbalResponse, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	v, ok := t.s.verbal[pairKey{participantID: participantID, questionID: questionID}]
	if !ok {
		return nil, notFound("verbal response of participant", participantID)
	}
	return &v, nil
}

func (t *tx) UpsertVerbalResponse(ctx context.Context, r models.VerbalResponse) (*models.VerbalResponse, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	key := pairKey{participantID: r.ParticipantID, questionID: r.QuestionID}
	if cur, ok := t.s.verbal[key]; ok {
		r.ID = cur.ID
	}
	r.IsCorrect = nil
	r.EvaluatedAt = nil
	put(t, t.s.verbal, key, r)
	return &r, nil
}

func (t *tx) EvaluateVerbalResponse(ctx context.Context, participantID, questionID uuid.UUID, correct bool, at time.Time) (*models.VerbalResponse, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	key := pairKey{participantID: participantID, questionID: questionID}
	v, ok := t.s.verbal[key]
	if !ok {
		return nil, notFound("verbal response of participant", participantID)
	}
	v.IsCorrect = &correct
	v.EvaluatedAt = &at
	put(t, t.s.verbal, key, v)
	return &v, nil
}

func (t *tx) DeleteAnswersForSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	n := 0
	for k := range t.s.answers {
		if t.s.questions[k.questionID].SessionID == sessionID {
			del(t, t.s.answers, k)
			n++
		}
	}
	for k := range t.s.verbal {
		if t.s.questions[k.questionID].SessionID == sessionID {
			del(t, t.s.verbal, k)
			n++
		}
	}
	return n, nil
}

func (t *tx) ListAnswers(ctx context.Context, f store.AnswerFilter) ([]models.AnswerHistoryItem, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	out := []models.AnswerHistoryItem{}
	add := func(id, participantID, questionID uuid.UUID, optionID *uuid.UUID, correct *bool, at time.Time) {
		q, ok := t.s.questions[questionID]
		if !ok || (f.SessionID != nil && q.SessionID != *f.SessionID) {
			return
		}
		if f.ParticipantID != nil && participantID != *f.ParticipantID {
			return
		}
		p, ok := t.s.participants[participantID]
		if !ok {
			return
		}
		item := models.AnswerHistoryItem{
			ID:            id,
			SessionID:     q.SessionID,
			ParticipantID: participantID,
			Username:      p.Username,
			GroupName:     p.GroupName,
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			QuestionType:  q.QuestionType,
			OptionID:      optionID,
			IsCorrect:     correct,
			AnsweredAt:    at,
		}
		if optionID != nil {
			if o, ok := t.s.options[*optionID]; ok {
				text := o.Text
				item.OptionText = &text
			}
		}
		out = append(out, item)
	}

	for _, r := range t.s.answers {
		optionID, correct := r.OptionID, r.IsCorrect
		add(r.ID, r.ParticipantID, r.QuestionID, &optionID, &correct, r.AnsweredAt)
	}
	for _, v := range t.s.verbal {
		add(v.ID, v.ParticipantID, v.QuestionID, nil, v.IsCorrect, v.AnsweredAt)
	}
	slices.SortFunc(out, func(a, b models.AnswerHistoryItem) int {
		if c := a.AnsweredAt.Compare(b.AnsweredAt); c != 0 {
			return c
		}
		return compareUUID(a.ID, b.ID)
	})
	return out, nil
}
