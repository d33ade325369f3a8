package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/game/cache"
	"github.com/eichdmk/ansar-quiz/go/internal/game/effects"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type CreateSessionRequest struct {
	Name                string
	QuestionDurationSec int
}

type OptionInput struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type CreateQuestionRequest struct {
	SessionID    uuid.UUID
	Text         string
	ImageURL     *string
	QuestionType models.QuestionType
	Options      []OptionInput
}

type UpdateQuestionRequest struct {
	QuestionID uuid.UUID
	CreateQuestionRequest
}

// QuestionInput is one question in an import or export document.
type QuestionInput struct {
	Text         string              `json:"text"`
	ImageURL     *string             `json:"image_url,omitempty"`
	QuestionType models.QuestionType `json:"question_type"`
	Options      []OptionInput       `json:"options"`
}

// QuizExport is a session's question bank in the shape ImportQuestions accepts.
type QuizExport struct {
	SessionID           uuid.UUID       `json:"session_id"`
	Name                string          `json:"name"`
	QuestionDurationSec int             `json:"question_duration_sec"`
	Questions           []QuestionInput `json:"questions"`
}

// App owns the quiz content: sessions and their question bank.
type App struct {
	store           store.Store
	fx              *effects.Runner
	clock           clockwork.Clock
	defaultDuration time.Duration
	bankTTL         time.Duration
}

func NewApp(s store.Store, fx *effects.Runner, clock clockwork.Clock, defaultDuration, bankTTL time.Duration) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{store: s, fx: fx, clock: clock, defaultDuration: defaultDuration, bankTTL: bankTTL}
}

// CreateSession creates an empty draft session.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("session name is required")
	}
	if req.QuestionDurationSec < 0 {
		return nil, apperrors.InvalidInput("question duration must not be negative")
	}
	duration := req.QuestionDurationSec
	if duration == 0 {
		duration = int(a.defaultDuration / time.Second)
	}

	var out *models.Session
	err := a.store.InTx(ctx, func(tx store.Tx) error {
		s, err := tx.CreateSession(ctx, models.Session{
			ID:                  uuid.New(),
			Name:                name,
			Status:              models.SessionStatusDraft,
			IsQuestionClosed:    true,
			QuestionDurationSec: duration,
			CreatedAt:           a.clock.Now().UTC(),
		})
		if err != nil {
			return store.Translate(err, "session")
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("session_id", out.ID.String()).Str("name", out.Name).Msg("created session")
	return out, nil
}

// CreateQuestion appends a question to the session's bank.
func (a *App) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*models.Question, error) {
	q, err := buildQuestion(req, a.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	var out *models.Question
	err = a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		if err := lockEditable(ctx, tx, req.SessionID); err != nil {
			return err
		}
		created, err := tx.CreateQuestion(ctx, q)
		if err != nil {
			return store.Translate(err, "question")
		}
		out = created
		fx.InvalidatePattern(cache.QuestionBankPattern(req.SessionID), cache.GamePattern(req.SessionID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListQuestions returns the full bank, answer key included, in position order.
func (a *App) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error) {
	return cache.Cached(ctx, a.fx.Cache(), cache.QuestionBankKey(sessionID), a.bankTTL, func(ctx context.Context) ([]models.Question, error) {
		out := []models.Question{}
		err := a.store.View(ctx, func(tx store.Tx) error {
			if _, err := tx.GetSession(ctx, sessionID); err != nil {
				return store.Translate(err, "session")
			}
			qs, err := tx.ListQuestions(ctx, sessionID)
			if err != nil {
				return store.Translate(err, "questions")
			}
			out = append(out, qs...)
			return nil
		})
		return out, err
	})
}

func (a *App) DeleteQuestion(ctx context.Context, sessionID, questionID uuid.UUID) error {
	return a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		if err := lockEditable(ctx, tx, sessionID); err != nil {
			return err
		}
		if err := tx.DeleteQuestion(ctx, sessionID, questionID); err != nil {
			return store.Translate(err, "question")
		}
		fx.InvalidatePattern(
			cache.QuestionBankPattern(sessionID),
			cache.GamePattern(sessionID),
			cache.QueuePattern(sessionID),
		)
		return nil
	})
}

// UpdateQuestion rewrites a question in place. Its options are replaced wholesale and its position is kept.
func (a *App) UpdateQuestion(ctx context.Context, req UpdateQuestionRequest) (*models.Question, error) {
	q, err := buildQuestion(req.CreateQuestionRequest, a.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	q.ID = req.QuestionID
	for i := range q.Options {
		q.Options[i].QuestionID = q.ID
	}

	var out *models.Question
	err = a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		if err := lockEditable(ctx, tx, req.SessionID); err != nil {
			return err
		}
		updated, err := tx.UpdateQuestion(ctx, q)
		if err != nil {
			return store.Translate(err, "question")
		}
		out = updated
		fx.InvalidatePattern(cache.QuestionBankPattern(req.SessionID), cache.GamePattern(req.SessionID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ImportQuestions replaces the session's whole bank with qs, in order. Nothing is written unless every question is valid.
func (a *App) ImportQuestions(ctx context.Context, sessionID uuid.UUID, qs []QuestionInput) ([]models.Question, error) {
	if len(qs) == 0 {
		return nil, apperrors.InvalidInput("nothing to import")
	}
	now := a.clock.Now().UTC()
	built := make([]models.Question, 0, len(qs))
	for i, in := range qs {
		q, err := buildQuestion(CreateQuestionRequest{
			SessionID:    sessionID,
			Text:         in.Text,
			ImageURL:     in.ImageURL,
			QuestionType: in.QuestionType,
			Options:      in.Options,
		}, now)
		if err != nil {
			return nil, apperrors.InvalidInput("question %d: %s", i+1, apperrors.Message(err))
		}
		built = append(built, q)
	}

	out := make([]models.Question, 0, len(built))
	err := a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		if err := lockEditable(ctx, tx, sessionID); err != nil {
			return err
		}
		if _, err := tx.DeleteQuestionsForSession(ctx, sessionID); err != nil {
			return store.Translate(err, "questions")
		}
		for _, q := range built {
			created, err := tx.CreateQuestion(ctx, q)
			if err != nil {
				return store.Translate(err, "question")
			}
			out = append(out, *created)
		}
		fx.InvalidatePattern(
			cache.QuestionBankPattern(sessionID),
			cache.GamePattern(sessionID),
			cache.QueuePattern(sessionID),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("session_id", sessionID.String()).Int("questions", len(out)).Msg("imported questions")
	return out, nil
}

// ExportQuestions reads the bank straight from the store, answer key included.
func (a *App) ExportQuestions(ctx context.Context, sessionID uuid.UUID) (*QuizExport, error) {
	var out *QuizExport
	err := a.store.View(ctx, func(tx store.Tx) error {
		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return store.Translate(err, "session")
		}
		qs, err := tx.ListQuestions(ctx, sessionID)
		if err != nil {
			return store.Translate(err, "questions")
		}
		out = &QuizExport{
			SessionID:           s.ID,
			Name:                s.Name,
			QuestionDurationSec: s.QuestionDurationSec,
			Questions:           make([]QuestionInput, 0, len(qs)),
		}
		for _, q := range qs {
			in := QuestionInput{Text: q.Text, ImageURL: q.ImageURL, QuestionType: q.QuestionType, Options: []OptionInput{}}
			for _, o := range q.Options {
				in.Options = append(in.Options, OptionInput{Text: o.Text, IsCorrect: o.IsCorrect})
			}
			out.Questions = append(out.Questions, in)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockEditable locks the session and refuses edits while it is running.
func lockEditable(ctx context.Context, tx store.Tx, sessionID uuid.UUID) error {
	s, err := tx.LockSession(ctx, sessionID)
	if err != nil {
		return store.Translate(err, "session")
	}
	if s.Status == models.SessionStatusRunning {
		return apperrors.Conflict("questions cannot change while the session is running")
	}
	return nil
}

// buildQuestion enforces the shape rules: the declared type is authoritative, multiple choice
// needs at least two options with one correct, and verbal questions have none.
func buildQuestion(req CreateQuestionRequest, now time.Time) (models.Question, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return models.Question{}, apperrors.InvalidInput("question text is required")
	}
	if !req.QuestionType.Valid() {
		return models.Question{}, apperrors.InvalidInput("unknown question type %q", req.QuestionType)
	}

	q := models.Question{
		ID:           uuid.New(),
		SessionID:    req.SessionID,
		Text:         text,
		QuestionType: req.QuestionType,
		CreatedAt:    now,
	}
	if req.ImageURL != nil {
		if u := strings.TrimSpace(*req.ImageURL); u != "" {
			q.ImageURL = &u
		}
	}

	switch req.QuestionType {
	case models.QuestionTypeVerbal:
		if len(req.Options) > 0 {
			return models.Question{}, apperrors.InvalidInput("verbal questions take no options")
		}
	case models.QuestionTypeMultipleChoice:
		if len(req.Options) < 2 {
			return models.Question{}, apperrors.InvalidInput("multiple-choice questions need at least two options")
		}
		correct := 0
		for i, o := range req.Options {
			t := strings.TrimSpace(o.Text)
			if t == "" {
				return models.Question{}, apperrors.InvalidInput("option %d has no text", i+1)
			}
			if o.IsCorrect {
				correct++
			}
			q.Options = append(q.Options, models.AnswerOption{ID: uuid.New(), QuestionID: q.ID, Text: t, IsCorrect: o.IsCorrect})
		}
		if correct == 0 {
			return models.Question{}, apperrors.InvalidInput("multiple-choice questions need a correct option")
		}
	}
	return q, nil
}
