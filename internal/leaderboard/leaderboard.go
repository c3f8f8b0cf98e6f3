// Package leaderboard mirrors session scores into Redis sorted sets so
// rankings can be read without scanning the progress tables.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/cityhunt/internal/hunt"
)

// Entry is one ranked row of a session leaderboard.
type Entry struct {
	Rank     int64  `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int64  `json:"score"`
}

// Redis keeps one sorted set per session. It implements events.Publisher.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("leaderboard:%s:realtime", sessionID)
}

// Publish adds the event's delta to the player's session score.
func (r *Redis) Publish(ctx context.Context, ev hunt.ScoreEvent) error {
	if ev.Delta == 0 {
		return nil
	}
	err := r.client.ZIncrBy(ctx, sessionKey(ev.SessionID), float64(ev.Delta), ev.PlayerID).Err()
	if err != nil {
		return fmt.Errorf("incrementing score: %w", err)
	}
	return nil
}

// Top returns the n best players of a session, highest score first.
func (r *Redis) Top(ctx context.Context, sessionID string, n int) ([]Entry, error) {
	if n < 1 {
		return nil, nil
	}
	results, err := r.client.ZRevRangeWithScores(ctx, sessionKey(sessionID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]Entry, len(results))
	for i, result := range results {
		member, _ := result.Member.(string)
		entries[i] = Entry{
			Rank:     int64(i + 1),
			PlayerID: member,
			Score:    int64(result.Score),
		}
	}
	return entries, nil
}

// Check pings the server; it satisfies health.Checker.
func (r *Redis) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
