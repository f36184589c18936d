package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-contest-service/internal/domain"
)

// ContestRepository loads contest catalogs from Postgres. Reads go through
// pgx; the write side lives in AttemptRepository on bun.
type ContestRepository struct {
	pool *pgxpool.Pool
}

func NewContestRepository(pool *pgxpool.Pool) *ContestRepository {
	return &ContestRepository{pool: pool}
}

// GetContestBySlug returns the contest with its questions and answers in
// display order, or domain.ErrContestNotFound.
func (r *ContestRepository) GetContestBySlug(ctx context.Context, slug string) (domain.Contest, error) {
	contest, err := r.loadContest(ctx, slug)
	if err != nil {
		return domain.Contest{}, err
	}
	if err := r.loadQuestions(ctx, &contest); err != nil {
		return domain.Contest{}, err
	}
	return contest, nil
}

// LoadContest satisfies the cache layers' loader interface.
func (r *ContestRepository) LoadContest(ctx context.Context, slug string) (domain.Contest, error) {
	return r.GetContestBySlug(ctx, slug)
}

func (r *ContestRepository) loadContest(ctx context.Context, slug string) (domain.Contest, error) {
	var contest domain.Contest
	err := r.pool.QueryRow(ctx, `
		SELECT id, slug, name, COALESCE(description, ''), active, allow_multiple_attempts, time_limit_minutes
		FROM contests WHERE slug = $1`, slug).
		Scan(&contest.ID, &contest.Slug, &contest.Name, &contest.Description,
			&contest.Active, &contest.AllowMultipleAttempts, &contest.TimeLimitMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	if err != nil {
		return domain.Contest{}, fmt.Errorf("load contest: %w", err)
	}
	return contest, nil
}

func (r *ContestRepository) loadQuestions(ctx context.Context, contest *domain.Contest) error {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.title, COALESCE(q.content, ''), q.qtype, q.position,
		       a.id, a.content, a.score, a.position
		FROM questions q
		JOIN answers a ON a.question_id = q.id
		WHERE q.contest_id = $1
		ORDER BY q.position, a.position`, contest.ID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var (
			question domain.Question
			answer   domain.Answer
		)
		if err := rows.Scan(&question.ID, &question.Title, &question.Content, &question.Type, &question.Position,
			&answer.ID, &answer.Content, &answer.Score, &answer.Position); err != nil {
			return fmt.Errorf("scan question: %w", err)
		}
		i, ok := index[question.ID]
		if !ok {
			i = len(contest.Questions)
			index[question.ID] = i
			contest.Questions = append(contest.Questions, question)
		}
		contest.Questions[i].Answers = append(contest.Questions[i].Answers, answer)
	}
	return rows.Err()
}
