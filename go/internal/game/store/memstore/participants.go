package memstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
)

func (t *tx) CreateParticipant(ctx context.Context, p models.Participant) (*models.Participant, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.sessions[p.SessionID]; !ok {
		return nil, notFound("session", p.SessionID)
	}
	if _, exists := t.s.participants[p.ID]; exists {
		return nil, fmt.Errorf("create participant %s: %w", p.ID, store.ErrConflict)
	}
	p.Score = 0
	put(t, t.s.participants, p.ID, p)
	return &p, nil
}

func (t *tx) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	p, ok := t.s.participants[id]
	if !ok {
		return nil, notFound("participant", id)
	}
	return &p, nil
}

func (t *tx) DeleteParticipant(ctx context.Context, id uuid.UUID) error {
	if err := t.write(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if !del(t, t.s.participants, id) {
		return notFound("participant", id)
	}
	for entryID, e := range t.s.entries {
		if e.ParticipantID == id {
			del(t, t.s.entries, entryID)
		}
	}
	for k := range t.s.answers {
		if k.participantID == id {
			del(t, t.s.answers, k)
		}
	}
	for k := range t.s.verbal {
		if k.participantID == id {
			del(t, t.s.verbal, k)
		}
	}
	return nil
}

func (t *tx) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	out := []models.Participant{}
	for _, p := range t.s.participants {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.Participant) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	return out, nil
}

func (t *tx) IncrementScore(ctx context.Context, participantID uuid.UUID, delta int) (int, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	p, ok := t.s.participants[participantID]
	if !ok {
		return 0, notFound("participant", participantID)
	}
	if p.Score+delta < 0 {
		return 0, fmt.Errorf("score of %s would drop below zero", participantID)
	}
	p.Score += delta
	put(t, t.s.participants, p.ID, p)
	return p.Score, nil
}

func (t *tx) ResetScores(ctx context.Context, sessionID uuid.UUID) error {
	if err := t.write(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, p := range t.s.participants {
		if p.SessionID == sessionID && p.Score != 0 {
			p.Score = 0
			put(t, t.s.participants, id, p)
		}
	}
	return nil
}

func (t *tx) SetScore(ctx context.Context, participantID uuid.UUID, score int) (*models.Participant, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	if score < 0 {
		return nil, fmt.Errorf("score of %s must not be negative", participantID)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	p, ok := t.s.participants[participantID]
	if !ok {
		return nil, notFound("participant", participantID)
	}
	p.Score = score
	put(t, t.s.participants, p.ID, p)
	return &p, nil
}
