package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-contest-service/internal/domain"
)

// LeaderboardCache keeps rendered leaderboard views in Redis so the standings
// page does not rescan attempts on every request. The submission coordinator
// invalidates the key whenever a new attempt lands.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) GetLeaderboard(ctx context.Context, contestID string) (domain.Leaderboard, bool, error) {
	raw, err := c.client.Get(ctx, c.key(contestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Leaderboard{}, false, nil
	}
	if err != nil {
		return domain.Leaderboard{}, false, err
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false, err
	}
	return lb, true, nil
}

func (c *LeaderboardCache) SetLeaderboard(ctx context.Context, lb domain.Leaderboard) error {
	data, err := json.Marshal(lb)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(lb.ContestID), data, c.ttl).Err()
}

func (c *LeaderboardCache) InvalidateLeaderboard(ctx context.Context, contestID string) error {
	return c.client.Del(ctx, c.key(contestID)).Err()
}

func (c *LeaderboardCache) key(contestID string) string {
	return "contest:" + contestID + ":leaderboard"
}
