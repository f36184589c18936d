package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-contest-service/internal/domain"
)

// ContestRepository resolves contest catalogs (from Postgres, a cache, or memory).
type ContestRepository interface {
	GetContestBySlug(ctx context.Context, slug string) (domain.Contest, error)
}

// AttemptRepository stores attempts and their answer rows.
type AttemptRepository interface {
	// FindAttempt returns the user's attempt for a contest, or ErrAttemptNotFound.
	FindAttempt(ctx context.Context, userID, contestID string) (domain.Attempt, error)
	// CreateAttempt persists the attempt and its answers in one transaction.
	// When enforceSingle is set the storage layer must guarantee at most one
	// attempt per (user, contest) and return ErrDuplicateSubmission otherwise.
	CreateAttempt(ctx context.Context, attempt domain.Attempt, answers []domain.UserAnswer, enforceSingle bool) error
	// ListAttempts returns every attempt recorded for a contest.
	ListAttempts(ctx context.Context, contestID string) ([]domain.Attempt, error)
}

// LeaderboardInvalidator drops cached leaderboard views after a submission.
type LeaderboardInvalidator interface {
	InvalidateLeaderboard(ctx context.Context, contestID string) error
}

// SubmissionService coordinates a submission: policy checks, scoring, and
// atomic persistence of the attempt record.
type SubmissionService struct {
	contests    ContestRepository
	attempts    AttemptRepository
	results     *ResultsService
	feed        *LeaderboardFeed
	invalidator LeaderboardInvalidator
	clock       func() time.Time
	newID       func() string
}

func NewSubmissionService(contests ContestRepository, attempts AttemptRepository, results *ResultsService) *SubmissionService {
	return &SubmissionService{
		contests: contests,
		attempts: attempts,
		results:  results,
		clock:    time.Now,
		newID:    uuid.NewString,
	}
}

// WithLiveFeed publishes the refreshed leaderboard to feed subscribers after
// each successful submission.
func (s *SubmissionService) WithLiveFeed(feed *LeaderboardFeed) *SubmissionService {
	s.feed = feed
	return s
}

// WithInvalidator drops cached leaderboard views after each successful submission.
func (s *SubmissionService) WithInvalidator(inv LeaderboardInvalidator) *SubmissionService {
	s.invalidator = inv
	return s
}

// WithClock is test-only for deterministic finish timestamps.
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.clock = now
	return s
}

// Submit runs the full submission pipeline for an authenticated user.
//
// Failure order is fixed: unauthorized, contest lookup, payload validation,
// duplicate policy. The duplicate pre-check is the friendly fast path; the
// storage-level guard inside CreateAttempt is the authority, so two concurrent
// submissions can never both land on a single-attempt contest.
func (s *SubmissionService) Submit(ctx context.Context, userID, slug string, payload SubmissionPayload) (domain.Evaluation, error) {
	if userID == "" {
		return domain.Evaluation{}, domain.ErrUnauthorized
	}

	contest, err := s.contests.GetContestBySlug(ctx, slug)
	if err != nil {
		return domain.Evaluation{}, err
	}
	if !contest.Active {
		return domain.Evaluation{}, domain.ErrContestNotFound
	}

	submission, err := ValidateSubmission(payload)
	if err != nil {
		return domain.Evaluation{}, err
	}

	enforceSingle := !contest.AllowMultipleAttempts
	if enforceSingle {
		_, err := s.attempts.FindAttempt(ctx, userID, contest.ID)
		switch {
		case err == nil:
			return domain.Evaluation{}, domain.ErrDuplicateSubmission
		case !errors.Is(err, domain.ErrAttemptNotFound):
			return domain.Evaluation{}, err
		}
	}

	eval := Evaluate(contest.Questions, submission.Selections)

	attempt := domain.Attempt{
		ID:             s.newID(),
		UserID:         userID,
		ContestID:      contest.ID,
		StartedAt:      submission.StartedAt,
		FinishedAt:     s.clock(),
		Score:          eval.TotalScore,
		CorrectCount:   eval.CorrectCount,
		TotalQuestions: eval.TotalQuestions,
	}
	answers := buildUserAnswers(s.newID, attempt, contest.Questions, eval)

	if err := s.attempts.CreateAttempt(ctx, attempt, answers, enforceSingle); err != nil {
		return domain.Evaluation{}, err
	}

	s.afterSubmit(ctx, contest)
	return eval, nil
}

// afterSubmit runs best-effort side effects; failures are logged, never
// surfaced, since the attempt is already durable.
func (s *SubmissionService) afterSubmit(ctx context.Context, contest domain.Contest) {
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateLeaderboard(ctx, contest.ID); err != nil {
			log.Printf("invalidate leaderboard for %s: %v", contest.Slug, err)
		}
	}
	if s.feed != nil && s.results != nil {
		lb, err := s.results.Leaderboard(ctx, contest.Slug)
		if err != nil {
			log.Printf("refresh leaderboard for %s: %v", contest.Slug, err)
			return
		}
		s.feed.Publish(contest.ID, lb)
	}
}

// buildUserAnswers snapshots one row per selected answer, copying the answer's
// current score so later catalog edits never change recorded history.
func buildUserAnswers(newID func() string, attempt domain.Attempt, questions []domain.Question, eval domain.Evaluation) []domain.UserAnswer {
	byQuestion := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}

	var rows []domain.UserAnswer
	for _, result := range eval.Results {
		question, ok := byQuestion[result.QuestionID]
		if !ok || len(result.SelectedAnswerIDs) == 0 {
			continue
		}
		scores := make(map[string]int, len(question.Answers))
		for _, a := range question.Answers {
			scores[a.ID] = a.Score
		}
		for _, answerID := range result.SelectedAnswerIDs {
			rows = append(rows, domain.UserAnswer{
				ID:         newID(),
				AttemptID:  attempt.ID,
				QuestionID: question.ID,
				AnswerID:   answerID,
				Score:      scores[answerID],
				IsCorrect:  result.IsCorrect,
			})
		}
	}
	return rows
}
