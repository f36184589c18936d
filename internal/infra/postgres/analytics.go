package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-contest-service/internal/domain"
)

// AnalyticsRepository answers aggregate questions on the recorded attempts.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// QuestionTallies counts distinct answering attempts per question and how
// many of those answered correctly. All rows of one question within an
// attempt share is_correct, so counting distinct attempt ids is exact.
func (r *AnalyticsRepository) QuestionTallies(ctx context.Context, contestID string) (map[string]domain.AnswerTally, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ua.question_id,
		       COUNT(DISTINCT ua.attempt_id),
		       COUNT(DISTINCT ua.attempt_id) FILTER (WHERE ua.is_correct)
		FROM user_answers ua
		JOIN attempts at ON at.id = ua.attempt_id
		WHERE at.contest_id = $1
		GROUP BY ua.question_id`, contestID)
	if err != nil {
		return nil, fmt.Errorf("question tallies: %w", err)
	}
	defer rows.Close()

	tallies := make(map[string]domain.AnswerTally)
	for rows.Next() {
		var (
			questionID string
			tally      domain.AnswerTally
		)
		if err := rows.Scan(&questionID, &tally.Answered, &tally.Correct); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies[questionID] = tally
	}
	return tallies, rows.Err()
}
