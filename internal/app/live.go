package app

import (
	"sync"

	"quiz-contest-service/internal/domain"
)

// LeaderboardFeed fans leaderboard snapshots out to live subscribers,
// per contest. Publishing never blocks on a slow subscriber: a full channel
// has its stale frame dropped before the fresh one is delivered.
type LeaderboardFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardFeed() *LeaderboardFeed {
	return &LeaderboardFeed{
		subs: make(map[string]map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel receiving leaderboard updates for a contest.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *LeaderboardFeed) Subscribe(contestID string) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	if f.subs[contestID] == nil {
		f.subs[contestID] = make(map[chan domain.Leaderboard]struct{})
	}
	f.subs[contestID][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[contestID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(f.subs, contestID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a fresh snapshot to every subscriber of the contest.
func (f *LeaderboardFeed) Publish(contestID string, lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[contestID] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
