package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-contest-service/internal/domain"
)

// ContestLoader fetches contest catalogs from the backing store.
type ContestLoader interface {
	LoadContest(ctx context.Context, slug string) (domain.Contest, error)
}

// ContestCache caches whole contest catalogs in Redis as JSON blobs
// (SET contest:{slug} with TTL) and falls back to the loader on a miss.
// Loads are collapsed through singleflight so a cold slug hits the store once.
type ContestCache struct {
	client *redis.Client
	loader ContestLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContestCache(client *redis.Client, loader ContestLoader, ttl time.Duration) *ContestCache {
	return &ContestCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContestCache) GetContestBySlug(ctx context.Context, slug string) (domain.Contest, error) {
	key := c.key(slug)

	if contest, ok := c.cached(ctx, key); ok {
		return contest, nil
	}

	result, err, _ := c.sf.Do(slug, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if contest, ok := c.cached(ctx, key); ok {
			return contest, nil
		}

		contest, err := c.loader.LoadContest(ctx, slug)
		if err != nil {
			return domain.Contest{}, err
		}

		if data, err := json.Marshal(contest); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return contest, nil
	})
	if err != nil {
		return domain.Contest{}, err
	}
	return result.(domain.Contest), nil
}

func (c *ContestCache) cached(ctx context.Context, key string) (domain.Contest, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Contest{}, false
	}
	var contest domain.Contest
	if err := json.Unmarshal(raw, &contest); err != nil {
		return domain.Contest{}, false
	}
	return contest, true
}

func (c *ContestCache) key(slug string) string {
	return "contest:" + slug
}

func (c *ContestCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
