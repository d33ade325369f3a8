package memstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
)

func (t *tx) CreateSession(ctx context.Context, s models.Session) (*models.Session, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, exists := t.s.sessions[s.ID]; exists {
		return nil, fmt.Errorf("create session %s: %w", s.ID, store.ErrConflict)
	}
	if s.Status == "" {
		s.Status = models.SessionStatusDraft
	}
	s.IsQuestionClosed = true
	put(t, t.s.sessions, s.ID, s)
	return &s, nil
}

func (t *tx) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	s, ok := t.s.sessions[id]
	if !ok {
		return nil, notFound("session", id)
	}
	return &s, nil
}

func (t *tx) LockSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if err := t.lock(ctx, id); err != nil {
		return nil, err
	}
	return t.GetSession(ctx, id)
}

func (t *tx) UpdateSessionLifecycle(ctx context.Context, s models.Session) (*models.Session, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	cur, ok := t.s.sessions[s.ID]
	if !ok {
		return nil, notFound("session", s.ID)
	}
	cur.Status = s.Status
	cur.CurrentQuestionIndex = s.CurrentQuestionIndex
	cur.IsQuestionClosed = s.IsQuestionClosed
	cur.QuestionDurationSec = s.QuestionDurationSec
	cur.StartedAt = s.StartedAt
	cur.FinishedAt = s.FinishedAt
	put(t, t.s.sessions, cur.ID, cur)
	return &cur, nil
}

func (t *tx) SetQuestionClosed(ctx context.Context, id uuid.UUID, closed bool) error {
	if err := t.write(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	cur, ok := t.s.sessions[id]
	if !ok {
		return notFound("session", id)
	}
	cur.IsQuestionClosed = closed
	put(t, t.s.sessions, id, cur)
	return nil
}

// Questions

func (t *tx) CountQuestions(ctx context.Context, sessionID uuid.UUID) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return len(t.sessionQuestionsLocked(sessionID)), nil
}

// sessionQuestionsLocked returns the session's questions in traversal order.
func (t *tx) sessionQuestionsLocked(sessionID uuid.UUID) []models.Question {
	var out []models.Question
	for _, q := range t.s.questions {
		if q.SessionID == sessionID {
			out = append(out, t.withOptionsLocked(q))
		}
	}
	slices.SortFunc(out, func(a, b models.Question) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return compareUUID(a.ID, b.ID)
	})
	return out
}

func (t *tx) withOptionsLocked(q models.Question) models.Question {
	opts := make([]models.AnswerOption, 0, len(q.Options))
	for _, o := range q.Options {
		if cur, ok := t.s.options[o.ID]; ok {
			opts = append(opts, cur)
		}
	}
	q.Options = opts
	return q
}

func (t *tx) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	q, ok := t.s.questions[id]
	if !ok {
		return nil, notFound("question", id)
	}
	q = t.withOptionsLocked(q)
	return &q, nil
}

func (t *tx) GetQuestionByIndex(ctx context.Context, sessionID uuid.UUID, index int) (*models.Question, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	qs := t.sessionQuestionsLocked(sessionID)
	if index < 0 || index >= len(qs) {
		return nil, notFound("question index", index)
	}
	q := qs[index]
	return &q, nil
}

func (t *tx) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.sessionQuestionsLocked(sessionID), nil
}

func (t *tx) CreateQuestion(ctx context.Context, q models.Question) (*models.Question, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.sessions[q.SessionID]; !ok {
		return nil, notFound("session", q.SessionID)
	}
	if _, exists := t.s.questions[q.ID]; exists {
		return nil, fmt.Errorf("create question %s: %w", q.ID, store.ErrConflict)
	}

	position := 1
	for _, existing := range t.s.questions {
		if existing.SessionID == q.SessionID && existing.Position >= position {
			position = existing.Position + 1
		}
	}
	q.Position = position

	opts := make([]models.AnswerOption, 0, len(q.Options))
	for _, o := range q.Options {
		o.QuestionID = q.ID
		put(t, t.s.options, o.ID, o)
		opts = append(opts, o)
	}
	q.Options = opts
	put(t, t.s.questions, q.ID, q)
	return &q, nil
}

func (t *tx) UpdateQuestion(ctx context.Context, q models.Question) (*models.Question, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	cur, ok := t.s.questions[q.ID]
	if !ok || cur.SessionID != q.SessionID {
		return nil, notFound("question", q.ID)
	}
	for _, o := range cur.Options {
		del(t, t.s.options, o.ID)
	}
	// Answer records point at the replaced options.
	for k := range t.s.answers {
		if k.questionID == q.ID {
			del(t, t.s.answers, k)
		}
	}

	cur.Text = q.Text
	cur.ImageURL = q.ImageURL
	cur.QuestionType = q.QuestionType
	cur.Options = make([]models.AnswerOption, 0, len(q.Options))
	for _, o := range q.Options {
		o.QuestionID = q.ID
		put(t, t.s.options, o.ID, o)
		cur.Options = append(cur.Options, o)
	}
	put(t, t.s.questions, cur.ID, cur)
	return &cur, nil
}

func (t *tx) DeleteQuestion(ctx context.Context, sessionID, questionID uuid.UUID) error {
	if err := t.write(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	q, ok := t.s.questions[questionID]
	if !ok || q.SessionID != sessionID {
		return notFound("question", questionID)
	}
	t.dropQuestion(q)

	for id, other := range t.s.questions {
		if other.SessionID == sessionID && other.Position > q.Position {
			other.Position--
			put(t, t.s.questions, id, other)
		}
	}
	return nil
}

func (t *tx) DeleteQuestionsForSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	n := 0
	for _, q := range t.s.questions {
		if q.SessionID == sessionID {
			t.dropQuestion(q)
			n++
		}
	}
	return n, nil
}

// dropQuestion deletes q and everything hanging off it. Caller holds s.mu.
func (t *tx) dropQuestion(q models.Question) {
	for _, o := range q.Options {
		del(t, t.s.options, o.ID)
	}
	for id, e := range t.s.entries {
		if e.QuestionID == q.ID {
			del(t, t.s.entries, id)
		}
	}
	for k := range t.s.answers {
		if k.questionID == q.ID {
			del(t, t.s.answers, k)
		}
	}
	for k := range t.s.verbal {
		if k.questionID == q.ID {
			del(t, t.s.verbal, k)
		}
	}
	del(t, t.s.questions, q.ID)
}

func (t *tx) GetOption(ctx context.Context, id uuid.UUID) (*models.AnswerOption, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	o, ok := t.s.options[id]
	if !ok {
		return nil, notFound("answer option", id)
	}
	return &o, nil
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return 0
}
