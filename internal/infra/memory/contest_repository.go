package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-contest-service/internal/domain"
)

// ContestLoader fetches contest catalogs from a backing store.
type ContestLoader interface {
	LoadContest(ctx context.Context, slug string) (domain.Contest, error)
}

// ContestRepository caches catalogs with TTL to avoid repeated store hits.
type ContestRepository struct {
	loader ContestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedContest
}

type cachedContest struct {
	contest   domain.Contest
	expiresAt time.Time
}

func NewContestRepository(loader ContestLoader, ttl time.Duration) *ContestRepository {
	return &ContestRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedContest),
	}
}

func (r *ContestRepository) GetContestBySlug(ctx context.Context, slug string) (domain.Contest, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[slug]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.contest, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[slug]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.contest, nil
		}
		r.mu.RUnlock()

		contest, err := r.loader.LoadContest(ctx, slug)
		if err != nil {
			return domain.Contest{}, err
		}

		r.mu.Lock()
		r.cache[slug] = cachedContest{
			contest:   contest,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return contest, nil
	})
	if err != nil {
		return domain.Contest{}, err
	}
	return result.(domain.Contest), nil
}

func (r *ContestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticContestLoader is a loader backed by an in-memory map (tests/demo mode).
type StaticContestLoader struct {
	mu       sync.RWMutex
	contests map[string]domain.Contest
}

func NewStaticContestLoader(contests map[string]domain.Contest) *StaticContestLoader {
	return &StaticContestLoader{contests: contests}
}

func (l *StaticContestLoader) LoadContest(_ context.Context, slug string) (domain.Contest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if contest, ok := l.contests[slug]; ok {
		return contest, nil
	}
	return domain.Contest{}, domain.ErrContestNotFound
}

// Put replaces a contest in the loader. Tests use it to simulate admin edits
// to answer scores after attempts were recorded.
func (l *StaticContestLoader) Put(contest domain.Contest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contests[contest.Slug] = contest
}

// GetContestBySlug lets the static loader stand in directly for the contest
// repository when no cache layer is wanted.
func (l *StaticContestLoader) GetContestBySlug(ctx context.Context, slug string) (domain.Contest, error) {
	return l.LoadContest(ctx, slug)
}
