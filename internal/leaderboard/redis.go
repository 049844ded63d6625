package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
)

const leaderboardKey = "ispy:leaderboard"

// Redis keeps the leaderboard in a sorted set. Ranks come from ZRevRank,
// so equal scores tie-break lexicographically by username instead of
// insertion order.
type Redis struct {
	rdb *redis.Client
	ctx context.Context
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, ctx: context.Background()}
}

func (r *Redis) NewPlayer(username string) (int, error) {
	added, err := r.rdb.ZAddNX(r.ctx, leaderboardKey, redis.Z{Score: 0, Member: username}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add leaderboard entry: %w", err)
	}
	if added == 0 {
		return 0, apperr.New(apperr.InvalidInput, "player %s already on leaderboard", username)
	}
	return r.rank(username)
}

func (r *Redis) UpdatePlayerScore(username string, delta int) (int, error) {
	score, err := r.rdb.ZScore(r.ctx, leaderboardKey, username).Result()
	if err == redis.Nil {
		return 0, apperr.New(apperr.InvalidInput, "player %s not on leaderboard", username)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read leaderboard score: %w", err)
	}
	_, err = r.rdb.ZAdd(r.ctx, leaderboardKey, redis.Z{Score: score + float64(delta), Member: username}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to update leaderboard score: %w", err)
	}
	return r.rank(username)
}

func (r *Redis) GetPlayerInfo(username string) (Entry, int, error) {
	score, err := r.rdb.ZScore(r.ctx, leaderboardKey, username).Result()
	if err == redis.Nil {
		return Entry{}, 0, apperr.New(apperr.InvalidInput, "player %s not on leaderboard", username)
	}
	if err != nil {
		return Entry{}, 0, fmt.Errorf("failed to read leaderboard score: %w", err)
	}
	rank, err := r.rank(username)
	if err != nil {
		return Entry{}, 0, err
	}
	return Entry{Username: username, Score: int(score)}, rank, nil
}

func (r *Redis) ReadLeaderboard() ([]Entry, error) {
	zs, err := r.rdb.ZRevRangeWithScores(r.ctx, leaderboardKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	var entries []Entry
	for _, z := range zs {
		entries = append(entries, Entry{Username: z.Member.(string), Score: int(z.Score)})
	}
	return entries, nil
}

func (r *Redis) DropPlayer(username string) error {
	if err := r.rdb.ZRem(r.ctx, leaderboardKey, username).Err(); err != nil {
		return fmt.Errorf("failed to drop leaderboard entry: %w", err)
	}
	return nil
}

func (r *Redis) DropLeaderboard() error {
	if err := r.rdb.Del(r.ctx, leaderboardKey).Err(); err != nil {
		return fmt.Errorf("failed to drop leaderboard: %w", err)
	}
	return nil
}

func (r *Redis) rank(username string) (int, error) {
	rank, err := r.rdb.ZRevRank(r.ctx, leaderboardKey, username).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read leaderboard rank: %w", err)
	}
	return int(rank) + 1, nil
}
