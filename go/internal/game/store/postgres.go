package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/game/db"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/eichdmk/ansar-quiz/go/internal/sqlutil"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// Postgres is the Store backed by database/sql and the generated query layer.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(database *sql.DB) *Postgres {
	return &Postgres{db: database}
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return sqlutil.Run(ctx, p.db, newPgTx, func(tx *pgTx) error {
		return fn(tx)
	})
}

func (p *Postgres) View(ctx context.Context, fn func(tx Tx) error) error {
	return sqlutil.RunWithOptions(ctx, p.db, &sql.TxOptions{ReadOnly: true}, newPgTx, func(tx *pgTx) error {
		return fn(tx)
	})
}

type pgTx struct {
	q *db.Queries
}

func newPgTx(tx *sql.Tx) *pgTx {
	return &pgTx{q: db.New(tx)}
}

// mapErr turns driver errors into the store sentinels.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %w", what, ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Sessions

func (t *pgTx) CreateSession(ctx context.Context, s models.Session) (*models.Session, error) {
	row, err := t.q.CreateSession(ctx, db.CreateSessionParams{
		ID:                  s.ID,
		Name:                s.Name,
		QuestionDurationSec: int32(s.QuestionDurationSec),
		CreatedAt:           s.CreatedAt,
	})
	if err != nil {
		return nil, mapErr(err, "create session")
	}
	return sessionFromRow(row), nil
}

func (t *pgTx) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row, err := t.q.GetSession(ctx, id)
	if err != nil {
		return nil, mapErr(err, "get session")
	}
	return sessionFromRow(row), nil
}

func (t *pgTx) LockSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row, err := t.q.LockSession(ctx, id)
	if err != nil {
		return nil, mapErr(err, "lock session")
	}
	return sessionFromRow(row), nil
}

func (t *pgTx) UpdateSessionLifecycle(ctx context.Context, s models.Session) (*models.Session, error) {
	row, err := t.q.UpdateSessionLifecycle(ctx, db.UpdateSessionLifecycleParams{
		ID:                   s.ID,
		Status:               string(s.Status),
		CurrentQuestionIndex: int32(s.CurrentQuestionIndex),
		IsQuestionClosed:     s.IsQuestionClosed,
		QuestionDurationSec:  int32(s.QuestionDurationSec),
		StartedAt:            sqlutil.ToSqlTime(s.StartedAt),
		FinishedAt:           sqlutil.ToSqlTime(s.FinishedAt),
	})
	if err != nil {
		return nil, mapErr(err, "update session")
	}
	return sessionFromRow(row), nil
}

func (t *pgTx) SetQuestionClosed(ctx context.Context, id uuid.UUID, closed bool) error {
	return mapErr(t.q.SetQuestionClosed(ctx, id, closed), "set question closed")
}

// Questions

func (t *pgTx) CountQuestions(ctx context.Context, sessionID uuid.UUID) (int, error) {
	n, err := t.q.CountQuestions(ctx, sessionID)
	if err != nil {
		return 0, mapErr(err, "count questions")
	}
	return int(n), nil
}

func (t *pgTx) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	row, err := t.q.GetQuestion(ctx, id)
	if err != nil {
		return nil, mapErr(err, "get question")
	}
	return questionFromRow(row)
}

func (t *pgTx) GetQuestionByIndex(ctx context.Context, sessionID uuid.UUID, index int) (*models.Question, error) {
	if index < 0 {
		return nil, fmt.Errorf("question index %d: %w", index, ErrNotFound)
	}
	row, err := t.q.GetQuestionByIndex(ctx, sessionID, int32(index))
	if err != nil {
		return nil, mapErr(err, "get question by index")
	}
	return questionFromRow(row)
}

func (t *pgTx) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error) {
	rows, err := t.q.ListQuestions(ctx, sessionID)
	if err != nil {
		return nil, mapErr(err, "list questions")
	}
	out := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		q, err := questionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, nil
}

func (t *pgTx) CreateQuestion(ctx context.Context, q models.Question) (*models.Question, error) {
	position, err := t.q.NextQuestionPosition(ctx, q.SessionID)
	if err != nil {
		return nil, mapErr(err, "next question position")
	}

	err = t.q.CreateQuestion(ctx, db.CreateQuestionParams{
		ID:           q.ID,
		SessionID:    q.SessionID,
		Text:         q.Text,
		ImageUrl:     sqlutil.ToSqlString(q.ImageURL),
		Position:     position,
		QuestionType: string(q.QuestionType),
		CreatedAt:    q.CreatedAt,
	})
	if err != nil {
		return nil, mapErr(err, "create question")
	}

	if err := t.insertOptions(ctx, q); err != nil {
		return nil, err
	}
	return t.GetQuestion(ctx, q.ID)
}

func (t *pgTx) UpdateQuestion(ctx context.Context, q models.Question) (*models.Question, error) {
	n, err := t.q.UpdateQuestion(ctx, db.UpdateQuestionParams{
		ID:           q.ID,
		SessionID:    q.SessionID,
		Text:         q.Text,
		ImageUrl:     sqlutil.ToSqlString(q.ImageURL),
		QuestionType: string(q.QuestionType),
	})
	if err != nil {
		return nil, mapErr(err, "update question")
	}
	if n == 0 {
		return nil, fmt.Errorf("update question %s: %w", q.ID, ErrNotFound)
	}
	if err := t.q.DeleteAnswerOptions(ctx, q.ID); err != nil {
		return nil, mapErr(err, "delete answer options")
	}
	if err := t.insertOptions(ctx, q); err != nil {
		return nil, err
	}
	return t.GetQuestion(ctx, q.ID)
}

func (t *pgTx) insertOptions(ctx context.Context, q models.Question) error {
	for i, o := range q.Options {
		err := t.q.CreateAnswerOption(ctx, db.CreateAnswerOptionParams{
			ID:         o.ID,
			QuestionID: q.ID,
			Text:       o.Text,
			IsCorrect:  o.IsCorrect,
			SortOrder:  int32(i),
		})
		if err != nil {
			return mapErr(err, "create answer option")
		}
	}
	return nil
}

func (t *pgTx) DeleteQuestion(ctx context.Context, sessionID, questionID uuid.UUID) error {
	position, err := t.q.DeleteQuestion(ctx, questionID, sessionID)
	if err != nil {
		return mapErr(err, "delete question")
	}
	// Positions stay dense so the cursor and position-1 name the same question.
	if _, err := t.q.CloseQuestionGap(ctx, sessionID, position); err != nil {
		return mapErr(err, "renumber questions")
	}
	return nil
}

func (t *pgTx) DeleteQuestionsForSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	n, err := t.q.DeleteQuestionsForSession(ctx, sessionID)
	if err != nil {
		return 0, mapErr(err, "delete questions")
	}
	return int(n), nil
}

func (t *pgTx) GetOption(ctx context.Context, id uuid.UUID) (*models.AnswerOption, error) {
	row, err := t.q.GetAnswerOption(ctx, id)
	if err != nil {
		return nil, mapErr(err, "get answer option")
	}
	return &models.AnswerOption{
		ID:         row.ID,
		QuestionID: row.QuestionID,
		Text:       row.Text,
		IsCorrect:  row.IsCorrect,
	}, nil
}

// Participants

func (t *pgTx) CreateParticipant(ctx context.Context, p models.Participant) (*models.Participant, error) {
	row, err := t.q.CreateParticipant(ctx, db.CreateParticipantParams{
		ID:        p.ID,
		SessionID: p.SessionID,
		Username:  p.Username,
		GroupName: sqlutil.ToSqlString(p.GroupName),
		JoinedAt:  p.JoinedAt,
	})
	if err != nil {
		return nil, mapErr(err, "create participant")
	}
	return participantFromRow(row), nil
}

func (t *pgTx) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	row, err := t.q.GetParticipant(ctx, id)
	if err != nil {
		return nil, mapErr(err, "get participant")
	}
	return participantFromRow(row), nil
}

func (t *pgTx) DeleteParticipant(ctx context.Context, id uuid.UUID) error {
	n, err := t.q.DeleteParticipant(ctx, id)
	if err != nil {
		return mapErr(err, "delete participant")
	}
	if n == 0 {
		return fmt.Errorf("delete participant %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := t.q.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, mapErr(err, "list participants")
	}
	out := make([]models.Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, *participantFromRow(row))
	}
	return out, nil
}

func (t *pgTx) IncrementScore(ctx context.Context, participantID uuid.UUID, delta int) (int, error) {
	score, err := t.q.IncrementScore(ctx, participantID, int32(delta))
	if err != nil {
		return 0, mapErr(err, "increment score")
	}
	return int(score), nil
}

func (t *pgTx) ResetScores(ctx context.Context, sessionID uuid.UUID) error {
	return mapErr(t.q.ResetScores(ctx, sessionID), "reset scores")
}

func (t *pgTx) SetScore(ctx context.Context, participantID uuid.UUID, score int) (*models.Participant, error) {
	row, err := t.q.SetScore(ctx, participantID, int32(score))
	if err != nil {
		return nil, mapErr(err, "set score")
	}
	return participantFromRow(row), nil
}

// Queue

func (t *pgTx) GetActiveEntry(ctx context.Context, sessionID, questionID, participantID uuid.UUID) (*models.QueueEntry, error) {
	row, err := t.q.GetActiveEntry(ctx, sessionID, questionID, participantID)
	if err != nil {
		return nil, mapErr(err, "get active entry")
	}
	return queueEntryFromRow(row), nil
}

func (t *pgTx) GetQueueHead(ctx context.Context, sessionID, questionID uuid.UUID) (*models.QueueEntry, error) {
	row, err := t.q.GetQueueHead(ctx, sessionID, questionID)
	if err != nil {
		return nil, mapErr(err, "get queue head")
	}
	return queueEntryFromRow(row), nil
}

func (t *pgTx) CountActiveEntries(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	n, err := t.q.CountActiveEntries(ctx, sessionID, questionID)
	if err != nil {
		return 0, mapErr(err, "count active entries")
	}
	return int(n), nil
}

func (t *pgTx) NextQueuePosition(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	n, err := t.q.NextQueuePosition(ctx, sessionID, questionID)
	if err != nil {
		return 0, mapErr(err, "next queue position")
	}
	return int(n), nil
}

func (t *pgTx) InsertQueueEntry(ctx context.Context, e models.QueueEntry) (*models.QueueEntry, error) {
	row, err := t.q.InsertQueueEntry(ctx, db.InsertQueueEntryParams{
		ID:            e.ID,
		SessionID:     e.SessionID,
		QuestionID:    e.QuestionID,
		ParticipantID: e.ParticipantID,
		Position:      int32(e.Position),
		JoinedAt:      e.JoinedAt,
	})
	if err != nil {
		return nil, mapErr(err, "insert queue entry")
	}
	return queueEntryFromRow(row), nil
}

func (t *pgTx) DeactivateEntry(ctx context.Context, id uuid.UUID) error {
	n, err := t.q.DeactivateEntry(ctx, id)
	if err != nil {
		return mapErr(err, "deactivate entry")
	}
	if n == 0 {
		return fmt.Errorf("deactivate entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeactivateQuestionEntries(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	n, err := t.q.DeactivateQuestionEntries(ctx, sessionID, questionID)
	if err != nil {
		return 0, mapErr(err, "deactivate question entries")
	}
	return int(n), nil
}

func (t *pgTx) DeleteQueueForSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	n, err := t.q.DeleteQueueForSession(ctx, sessionID)
	if err != nil {
		return 0, mapErr(err, "delete session queue")
	}
	return int(n), nil
}

func (t *pgTx) ListParticipantActiveEntries(ctx context.Context, participantID uuid.UUID) ([]models.QueueEntry, error) {
	rows, err := t.q.ListParticipantActiveEntries(ctx, participantID)
	if err != nil {
		return nil, mapErr(err, "list participant entries")
	}
	out := make([]models.QueueEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, *queueEntryFromRow(row))
	}
	return out, nil
}

func (t *pgTx) ListActiveQueue(ctx context.Context, sessionID, questionID uuid.UUID) ([]models.QueueEntryView, error) {
	rows, err := t.q.ListActiveQueue(ctx, sessionID, questionID)
	if err != nil {
		return nil, mapErr(err, "list active queue")
	}
	out := make([]models.QueueEntryView, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.QueueEntryView{
			ID:                   row.ID,
			ParticipantID:        row.ParticipantID,
			Position:             int(row.Position),
			JoinedAt:             row.JoinedAt,
			Username:             row.Username,
			GroupName:            sqlutil.FromSqlStringPtr(row.GroupName),
			Score:                int(row.Score),
			IsCorrect:            sqlutil.FromSqlBool(row.IsCorrect),
			WaitingForEvaluation: row.WaitingForEvaluation,
		})
	}
	return out, nil
}

func (t *pgTx) CountEntriesAhead(ctx context.Context, e models.QueueEntry) (int, error) {
	n, err := t.q.CountEntriesAhead(ctx, db.CountEntriesAheadParams{
		SessionID:  e.SessionID,
		QuestionID: e.QuestionID,
		Position:   int32(e.Position),
		JoinedAt:   e.JoinedAt,
	})
	if err != nil {
		return 0, mapErr(err, "count entries ahead")
	}
	return int(n), nil
}

// Answers

func (t *pgTx) UpsertAnswerRecord(ctx context.Context, r models.AnswerRecord) (*models.AnswerRecord, error) {
	row, err := t.q.UpsertAnswerRecord(ctx, db.UpsertAnswerRecordParams{
		ID:            r.ID,
		ParticipantID: r.ParticipantID,
		QuestionID:    r.QuestionID,
		OptionID:      r.OptionID,
		IsCorrect:     r.IsCorrect,
		AnsweredAt:    r.AnsweredAt,
	})
	if err != nil {
		return nil, mapErr(err, "upsert answer record")
	}
	return &models.AnswerRecord{
		ID:            row.ID,
		ParticipantID: row.ParticipantID,
		QuestionID:    row.QuestionID,
		OptionID:      row.OptionID,
		IsCorrect:     row.IsCorrect,
		AnsweredAt:    row.AnsweredAt,
	}, nil
}

func (t *pgTx) GetVerbalResponse(ctx context.Context, participantID, questionID uuid.UUID) (*models.VerbalResponse, error) {
	row, err := t.q.GetVerbalResponse(ctx, participantID, questionID)
	if err != nil {
		return nil, mapErr(err, "get verbal response")
	}
	return verbalFromRow(row), nil
}

func (t *pgTx) UpsertVerbalResponse(ctx context.Context, r models.VerbalResponse) (*models.VerbalResponse, error) {
	row, err := t.q.UpsertVerbalResponse(ctx, db.UpsertVerbalResponseParams{
		ID:            r.ID,
		ParticipantID: r.ParticipantID,
		QuestionID:    r.QuestionID,
		AnsweredAt:    r.AnsweredAt,
	})
	if err != nil {
		return nil, mapErr(err, "upsert verbal response")
	}
	return verbalFromRow(row), nil
}

func (t *pgTx) EvaluateVerbalResponse(ctx context.Context, participantID, questionID uuid.UUID, correct bool, at time.Time) (*models.VerbalResponse, error) {
	row, err := t.q.EvaluateVerbalResponse(ctx, db.EvaluateVerbalResponseParams{
		ParticipantID: participantID,
		QuestionID:    questionID,
		IsCorrect:     sqlutil.ToSqlBool(&correct),
		EvaluatedAt:   sqlutil.ToSqlTime(&at),
	})
	if err != nil {
		return nil, mapErr(err, "evaluate verbal response")
	}
	return verbalFromRow(row), nil
}

func (t *pgTx) DeleteAnswersForSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	records, err := t.q.DeleteAnswerRecordsForSession(ctx, sessionID)
	if err != nil {
		return 0, mapErr(err, "delete answer records")
	}
	verbal, err := t.q.DeleteVerbalResponsesForSession(ctx, sessionID)
	if err != nil {
		return 0, mapErr(err, "delete verbal responses")
	}
	return int(records + verbal), nil
}

func (t *pgTx) ListAnswers(ctx context.Context, f AnswerFilter) ([]models.AnswerHistoryItem, error) {
	rows, err := t.q.ListAnswerHistory(ctx, db.ListAnswerHistoryParams{
		SessionID:     sqlutil.ToNullUUID(f.SessionID),
		ParticipantID: sqlutil.ToNullUUID(f.ParticipantID),
	})
	if err != nil {
		return nil, mapErr(err, "list answers")
	}
	out := make([]models.AnswerHistoryItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.AnswerHistoryItem{
			ID:            row.ID,
			SessionID:     row.SessionID,
			ParticipantID: row.ParticipantID,
			Username:      row.Username,
			GroupName:     sqlutil.FromSqlStringPtr(row.GroupName),
			QuestionID:    row.QuestionID,
			QuestionText:  row.QuestionText,
			QuestionType:  models.QuestionType(row.QuestionType),
			OptionID:      sqlutil.FromNullUUID(row.OptionID),
			OptionText:    sqlutil.FromSqlStringPtr(row.OptionText),
			IsCorrect:     sqlutil.FromSqlBool(row.IsCorrect),
			AnsweredAt:    row.AnsweredAt,
		})
	}
	return out, nil
}

// Row conversion

func sessionFromRow(row db.QuizSession) *models.Session {
	return &models.Session{
		ID:                   row.ID,
		Name:                 row.Name,
		Status:               models.SessionStatus(row.Status),
		CurrentQuestionIndex: int(row.CurrentQuestionIndex),
		IsQuestionClosed:     row.IsQuestionClosed,
		QuestionDurationSec:  int(row.QuestionDurationSec),
		CreatedAt:            row.CreatedAt,
		StartedAt:            sqlutil.FromSqlTime(row.StartedAt),
		FinishedAt:           sqlutil.FromSqlTime(row.FinishedAt),
	}
}

func questionFromRow(row db.QuestionWithOptions) (*models.Question, error) {
	q := &models.Question{
		ID:           row.ID,
		SessionID:    row.SessionID,
		Text:         row.Text,
		ImageURL:     sqlutil.FromSqlStringPtr(row.ImageUrl),
		Position:     int(row.Position),
		QuestionType: models.QuestionType(row.QuestionType),
		Options:      []models.AnswerOption{},
		CreatedAt:    row.CreatedAt,
	}
	if row.Options.Valid && len(row.Options.RawMessage) > 0 {
		if err := json.Unmarshal(row.Options.RawMessage, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %s: %w", row.ID, err)
		}
	}
	return q, nil
}

func participantFromRow(row db.Participant) *models.Participant {
	return &models.Participant{
		ID:        row.ID,
		SessionID: row.SessionID,
		Username:  row.Username,
		GroupName: sqlutil.FromSqlStringPtr(row.GroupName),
		Score:     int(row.Score),
		JoinedAt:  row.JoinedAt,
	}
}

func queueEntryFromRow(row db.QueueEntry) *models.QueueEntry {
	return &models.QueueEntry{
		ID:            row.ID,
		SessionID:     row.SessionID,
		QuestionID:    row.QuestionID,
		ParticipantID: row.ParticipantID,
		Position:      int(row.Position),
		IsActive:      row.IsActive,
		JoinedAt:      row.JoinedAt,
	}
}

func verbalFromRow(row db.VerbalResponse) *models.VerbalResponse {
	return &models.VerbalResponse{
		ID:            row.ID,
		ParticipantID: row.ParticipantID,
		QuestionID:    row.QuestionID,
		IsCorrect:     sqlutil.FromSqlBool(row.IsCorrect),
		AnsweredAt:    row.AnsweredAt,
		EvaluatedAt:   sqlutil.FromSqlTime(row.EvaluatedAt),
	}
}

var _ Store = (*Postgres)(nil)
var _ Tx = (*pgTx)(nil)
