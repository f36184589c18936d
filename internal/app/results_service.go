package app

import (
	"context"
	"log"
	"sort"
	"time"

	"quiz-contest-service/internal/domain"
)

// AnalyticsRepository returns raw per-question tallies for a contest.
type AnalyticsRepository interface {
	QuestionTallies(ctx context.Context, contestID string) (map[string]domain.AnswerTally, error)
}

// LeaderboardCache is an optional read-through cache for leaderboard views.
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, contestID string) (domain.Leaderboard, bool, error)
	SetLeaderboard(ctx context.Context, lb domain.Leaderboard) error
}

// ResultsService serves the read side: catalogs, recorded attempts,
// leaderboards, and per-question analytics.
type ResultsService struct {
	contests  ContestRepository
	attempts  AttemptRepository
	analytics AnalyticsRepository
	cache     LeaderboardCache
	clock     func() time.Time
}

func NewResultsService(contests ContestRepository, attempts AttemptRepository, analytics AnalyticsRepository) *ResultsService {
	return &ResultsService{
		contests:  contests,
		attempts:  attempts,
		analytics: analytics,
		clock:     time.Now,
	}
}

// WithCache enables read-through leaderboard caching.
func (s *ResultsService) WithCache(cache LeaderboardCache) *ResultsService {
	s.cache = cache
	return s
}

// WithClock is test-only for deterministic timestamps.
func (s *ResultsService) WithClock(now func() time.Time) *ResultsService {
	s.clock = now
	return s
}

// Catalog returns the playable view of a contest with answer scores stripped,
// so clients can never derive the correct set from the payload.
func (s *ResultsService) Catalog(ctx context.Context, slug string) (domain.Contest, error) {
	contest, err := s.activeContest(ctx, slug)
	if err != nil {
		return domain.Contest{}, err
	}

	questions := make([]domain.Question, len(contest.Questions))
	for i, q := range contest.Questions {
		answers := make([]domain.Answer, len(q.Answers))
		for j, a := range q.Answers {
			a.Score = 0
			answers[j] = a
		}
		q.Answers = answers
		questions[i] = q
	}
	contest.Questions = questions
	return contest, nil
}

// UserAttempt returns the caller's recorded attempt for a contest.
func (s *ResultsService) UserAttempt(ctx context.Context, userID, slug string) (domain.Attempt, error) {
	if userID == "" {
		return domain.Attempt{}, domain.ErrUnauthorized
	}
	contest, err := s.activeContest(ctx, slug)
	if err != nil {
		return domain.Attempt{}, err
	}
	return s.attempts.FindAttempt(ctx, userID, contest.ID)
}

// Leaderboard returns contest standings ordered by score (higher first),
// breaking ties by earlier finish, then by user id for stability.
func (s *ResultsService) Leaderboard(ctx context.Context, slug string) (domain.Leaderboard, error) {
	contest, err := s.activeContest(ctx, slug)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	if s.cache != nil {
		if lb, ok, err := s.cache.GetLeaderboard(ctx, contest.ID); err != nil {
			log.Printf("leaderboard cache read for %s: %v", slug, err)
		} else if ok {
			return lb, nil
		}
	}

	attempts, err := s.attempts.ListAttempts(ctx, contest.ID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(attempts))
	for _, attempt := range attempts {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:       attempt.UserID,
			Score:        attempt.Score,
			CorrectCount: attempt.CorrectCount,
			FinishedAt:   attempt.FinishedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].FinishedAt.Equal(entries[j].FinishedAt) {
			return entries[i].FinishedAt.Before(entries[j].FinishedAt)
		}
		return entries[i].UserID < entries[j].UserID
	})

	lb := domain.Leaderboard{
		ContestID: contest.ID,
		Slug:      contest.Slug,
		Entries:   entries,
		UpdatedAt: s.clock(),
	}
	if s.cache != nil {
		if err := s.cache.SetLeaderboard(ctx, lb); err != nil {
			log.Printf("leaderboard cache write for %s: %v", slug, err)
		}
	}
	return lb, nil
}

// ContestStats assembles per-question analytics from the raw tallies, keeping
// zero rows for questions nobody has answered yet.
func (s *ResultsService) ContestStats(ctx context.Context, slug string) (domain.ContestStats, error) {
	contest, err := s.activeContest(ctx, slug)
	if err != nil {
		return domain.ContestStats{}, err
	}

	tallies, err := s.analytics.QuestionTallies(ctx, contest.ID)
	if err != nil {
		return domain.ContestStats{}, err
	}
	attempts, err := s.attempts.ListAttempts(ctx, contest.ID)
	if err != nil {
		return domain.ContestStats{}, err
	}

	stats := domain.ContestStats{
		ContestID:     contest.ID,
		Slug:          contest.Slug,
		TotalAttempts: len(attempts),
		Questions:     make([]domain.QuestionStat, 0, len(contest.Questions)),
	}
	for _, question := range contest.Questions {
		tally := tallies[question.ID]
		stat := domain.QuestionStat{
			QuestionID: question.ID,
			Title:      question.Title,
			Position:   question.Position,
			Answered:   tally.Answered,
			Correct:    tally.Correct,
		}
		if tally.Answered > 0 {
			stat.CorrectRate = float64(tally.Correct) / float64(tally.Answered)
		}
		stats.Questions = append(stats.Questions, stat)
	}
	return stats, nil
}

func (s *ResultsService) activeContest(ctx context.Context, slug string) (domain.Contest, error) {
	contest, err := s.contests.GetContestBySlug(ctx, slug)
	if err != nil {
		return domain.Contest{}, err
	}
	if !contest.Active {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	return contest, nil
}
