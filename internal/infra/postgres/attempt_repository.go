package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-contest-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:at"`

	ID             string    `bun:"id,pk"`
	UserID         string    `bun:"user_id,notnull"`
	ContestID      string    `bun:"contest_id,notnull"`
	StartedAt      time.Time `bun:"started_at,notnull"`
	FinishedAt     time.Time `bun:"finished_at,notnull"`
	Score          int       `bun:"score,notnull"`
	CorrectCount   int       `bun:"correct_count,notnull"`
	TotalQuestions int       `bun:"total_questions,notnull"`
}

type userAnswerRow struct {
	bun.BaseModel `bun:"table:user_answers,alias:ua"`

	ID         string `bun:"id,pk"`
	AttemptID  string `bun:"attempt_id,notnull"`
	QuestionID string `bun:"question_id,notnull"`
	AnswerID   string `bun:"answer_id,notnull"`
	Score      int    `bun:"score,notnull"`
	IsCorrect  bool   `bun:"is_correct,notnull"`
}

// attemptLockRow is the storage-level single-attempt guard: the primary key on
// (contest_id, user_id) makes the second concurrent insert fail even when both
// requests passed the coordinator's pre-check.
type attemptLockRow struct {
	bun.BaseModel `bun:"table:attempt_locks,alias:al"`

	ContestID string `bun:"contest_id,pk"`
	UserID    string `bun:"user_id,pk"`
}

// AttemptRepository persists attempts and their answer rows via bun.
type AttemptRepository struct {
	db *bun.DB
}

func NewAttemptRepository(db *bun.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) FindAttempt(ctx context.Context, userID, contestID string) (domain.Attempt, error) {
	var row attemptRow
	err := r.db.NewSelect().Model(&row).
		Where("user_id = ?", userID).
		Where("contest_id = ?", contestID).
		OrderExpr("finished_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("find attempt: %w", err)
	}
	return toAttempt(row), nil
}

// CreateAttempt inserts the attempt, its answer rows, and (when enforceSingle)
// the lock row in one transaction; any failure rolls everything back.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, attempt domain.Attempt, answers []domain.UserAnswer, enforceSingle bool) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if enforceSingle {
			lock := attemptLockRow{ContestID: attempt.ContestID, UserID: attempt.UserID}
			if _, err := tx.NewInsert().Model(&lock).Exec(ctx); err != nil {
				if isUniqueViolation(err) {
					return domain.ErrDuplicateSubmission
				}
				return fmt.Errorf("insert attempt lock: %w", err)
			}
		}

		row := attemptRow{
			ID:             attempt.ID,
			UserID:         attempt.UserID,
			ContestID:      attempt.ContestID,
			StartedAt:      attempt.StartedAt,
			FinishedAt:     attempt.FinishedAt,
			Score:          attempt.Score,
			CorrectCount:   attempt.CorrectCount,
			TotalQuestions: attempt.TotalQuestions,
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}

		if len(answers) == 0 {
			return nil
		}
		rows := make([]userAnswerRow, len(answers))
		for i, answer := range answers {
			rows[i] = userAnswerRow{
				ID:         answer.ID,
				AttemptID:  answer.AttemptID,
				QuestionID: answer.QuestionID,
				AnswerID:   answer.AnswerID,
				Score:      answer.Score,
				IsCorrect:  answer.IsCorrect,
			}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert user answers: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSubmission) {
			return domain.ErrDuplicateSubmission
		}
		return err
	}
	return nil
}

func (r *AttemptRepository) ListAttempts(ctx context.Context, contestID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := r.db.NewSelect().Model(&rows).
		Where("contest_id = ?", contestID).
		OrderExpr("score DESC, finished_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attempts := make([]domain.Attempt, len(rows))
	for i, row := range rows {
		attempts[i] = toAttempt(row)
	}
	return attempts, nil
}

func toAttempt(row attemptRow) domain.Attempt {
	return domain.Attempt{
		ID:             row.ID,
		UserID:         row.UserID,
		ContestID:      row.ContestID,
		StartedAt:      row.StartedAt,
		FinishedAt:     row.FinishedAt,
		Score:          row.Score,
		CorrectCount:   row.CorrectCount,
		TotalQuestions: row.TotalQuestions,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
