package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"quiz-contest-service/internal/domain"
)

type contestRow struct {
	bun.BaseModel `bun:"table:contests,alias:c"`

	ID                    string `bun:"id,pk"`
	Slug                  string `bun:"slug,notnull"`
	Name                  string `bun:"name,notnull"`
	Description           string `bun:"description"`
	Active                bool   `bun:"active,notnull"`
	AllowMultipleAttempts bool   `bun:"allow_multiple_attempts,notnull"`
	TimeLimitMinutes      int    `bun:"time_limit_minutes,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID        string `bun:"id,pk"`
	ContestID string `bun:"contest_id,notnull"`
	Title     string `bun:"title,notnull"`
	Content   string `bun:"content"`
	Type      string `bun:"qtype,notnull"`
	Position  int    `bun:"position,notnull"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:an"`

	ID         string `bun:"id,pk"`
	QuestionID string `bun:"question_id,notnull"`
	Content    string `bun:"content,notnull"`
	Score      int    `bun:"score,notnull"`
	Position   int    `bun:"position,notnull"`
}

// UpsertContest writes a contest and its full question/answer catalog in one
// transaction, replacing any previous catalog for the same contest id. Used by
// the seed command and the integration tests.
func UpsertContest(ctx context.Context, db *bun.DB, contest domain.Contest) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := contestRow{
			ID:                    contest.ID,
			Slug:                  contest.Slug,
			Name:                  contest.Name,
			Description:           contest.Description,
			Active:                contest.Active,
			AllowMultipleAttempts: contest.AllowMultipleAttempts,
			TimeLimitMinutes:      contest.TimeLimitMinutes,
		}
		if _, err := tx.NewInsert().Model(&row).
			On("CONFLICT (id) DO UPDATE").
			Set("slug = EXCLUDED.slug").
			Set("name = EXCLUDED.name").
			Set("description = EXCLUDED.description").
			Set("active = EXCLUDED.active").
			Set("allow_multiple_attempts = EXCLUDED.allow_multiple_attempts").
			Set("time_limit_minutes = EXCLUDED.time_limit_minutes").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert contest: %w", err)
		}

		if _, err := tx.NewDelete().Model((*questionRow)(nil)).
			Where("contest_id = ?", contest.ID).Exec(ctx); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}

		for _, question := range contest.Questions {
			q := questionRow{
				ID:        question.ID,
				ContestID: contest.ID,
				Title:     question.Title,
				Content:   question.Content,
				Type:      string(question.Type),
				Position:  question.Position,
			}
			if _, err := tx.NewInsert().Model(&q).Exec(ctx); err != nil {
				return fmt.Errorf("insert question %s: %w", question.ID, err)
			}
			for _, answer := range question.Answers {
				a := answerRow{
					ID:         answer.ID,
					QuestionID: question.ID,
					Content:    answer.Content,
					Score:      answer.Score,
					Position:   answer.Position,
				}
				if _, err := tx.NewInsert().Model(&a).Exec(ctx); err != nil {
					return fmt.Errorf("insert answer %s: %w", answer.ID, err)
				}
			}
		}
		return nil
	})
}
