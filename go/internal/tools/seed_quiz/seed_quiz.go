package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/eichdmk/ansar-quiz/go/internal/dbconfig"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Option struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsCorrect bool      `json:"is_correct"`
}

type Question struct {
	ID           uuid.UUID `json:"id"`
	Text         string    `json:"text"`
	QuestionType string    `json:"question_type"`
	Options      []Option  `json:"options"`
}

type Quiz struct {
	Session struct {
		ID                  uuid.UUID `json:"id"`
		Name                string    `json:"name"`
		QuestionDurationSec int       `json:"question_duration_sec"`
	} `json:"session"`
	Questions []Question `json:"questions"`
}

func main() {
	ctx := context.Background()

	path := "go/internal/assets/demo_quiz.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load quiz file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var quiz Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal quiz: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed everything in one transaction so a rerun never leaves half a quiz
	var inserted, skipped int
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            INSERT INTO quiz_sessions (id, name, status, question_duration_sec)
            VALUES ($1, $2, 'draft', $3)
            ON CONFLICT (id) DO NOTHING
        `, quiz.Session.ID, quiz.Session.Name, quiz.Session.QuestionDurationSec)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			skipped++
			return nil
		}
		inserted++

		for i, q := range quiz.Questions {
			if _, err := tx.Exec(ctx, `
                INSERT INTO questions (id, session_id, text, position, question_type)
                VALUES ($1, $2, $3, $4, $5)
            `, q.ID, quiz.Session.ID, q.Text, i+1, q.QuestionType); err != nil {
				return fmt.Errorf("insert question %d: %w", i+1, err)
			}
			inserted++

			for j, o := range q.Options {
				if _, err := tx.Exec(ctx, `
                    INSERT INTO answer_options (id, question_id, text, is_correct, sort_order)
                    VALUES ($1, $2, $3, $4, $5)
                `, o.ID, q.ID, o.Text, o.IsCorrect, j); err != nil {
					return fmt.Errorf("insert option %d of question %d: %w", j+1, i+1, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed quiz: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf(
		"Quiz seed: session=%s questions=%d inserted=%d skipped=%d\n",
		quiz.Session.ID, len(quiz.Questions), inserted, skipped,
	)
}
