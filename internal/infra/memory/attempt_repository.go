package memory

import (
	"context"
	"sync"

	"quiz-contest-service/internal/domain"
)

// AttemptRepository is an in-memory store for attempts and their answer rows.
// It enforces the same single-attempt guarantee the Postgres layer does with
// its lock table: the check and the insert happen under one mutex.
type AttemptRepository struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt      // attempt id -> attempt
	answers  map[string][]domain.UserAnswer // attempt id -> rows
	locks    map[attemptKey]string          // (contest, user) -> attempt id
	byOwner  map[attemptKey][]string        // (contest, user) -> attempt ids
}

type attemptKey struct {
	contestID string
	userID    string
}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{
		attempts: make(map[string]domain.Attempt),
		answers:  make(map[string][]domain.UserAnswer),
		locks:    make(map[attemptKey]string),
		byOwner:  make(map[attemptKey][]string),
	}
}

func (r *AttemptRepository) FindAttempt(_ context.Context, userID, contestID string) (domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byOwner[attemptKey{contestID: contestID, userID: userID}]
	if len(ids) == 0 {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return r.attempts[ids[0]], nil
}

func (r *AttemptRepository) CreateAttempt(_ context.Context, attempt domain.Attempt, answers []domain.UserAnswer, enforceSingle bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := attemptKey{contestID: attempt.ContestID, userID: attempt.UserID}
	if enforceSingle {
		if _, taken := r.locks[key]; taken {
			return domain.ErrDuplicateSubmission
		}
		r.locks[key] = attempt.ID
	}

	r.attempts[attempt.ID] = attempt
	r.answers[attempt.ID] = append([]domain.UserAnswer(nil), answers...)
	r.byOwner[key] = append(r.byOwner[key], attempt.ID)
	return nil
}

func (r *AttemptRepository) ListAttempts(_ context.Context, contestID string) ([]domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Attempt
	for _, attempt := range r.attempts {
		if attempt.ContestID == contestID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

// QuestionTallies counts, per question, how many attempts answered it and how
// many of those answered it correctly.
func (r *AttemptRepository) QuestionTallies(_ context.Context, contestID string) (map[string]domain.AnswerTally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tallies := make(map[string]domain.AnswerTally)
	for attemptID, attempt := range r.attempts {
		if attempt.ContestID != contestID {
			continue
		}
		seen := make(map[string]bool)
		for _, row := range r.answers[attemptID] {
			if seen[row.QuestionID] {
				continue
			}
			seen[row.QuestionID] = true
			tally := tallies[row.QuestionID]
			tally.Answered++
			if row.IsCorrect {
				tally.Correct++
			}
			tallies[row.QuestionID] = tally
		}
	}
	return tallies, nil
}

// AnswersFor returns the recorded rows of an attempt. Tests use it to assert
// the score snapshot invariant.
func (r *AttemptRepository) AnswersFor(attemptID string) []domain.UserAnswer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.UserAnswer(nil), r.answers[attemptID]...)
}
