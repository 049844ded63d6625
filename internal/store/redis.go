package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/cloudydaiyz/ispy-backend/internal/game"
)

const metricsKey = "ispy:metrics"

// RedisMetrics keeps the app gauges in a redis hash so they survive
// process restarts and can be scraped out of band.
type RedisMetrics struct {
	rdb *redis.Client
	ctx context.Context
}

func NewRedisMetrics(rdb *redis.Client) *RedisMetrics {
	return &RedisMetrics{rdb: rdb, ctx: context.Background()}
}

func (s *RedisMetrics) ReadAppMetrics() (game.AppMetrics, error) {
	fields, err := s.rdb.HGetAll(s.ctx, metricsKey).Result()
	if err != nil {
		return game.AppMetrics{}, fmt.Errorf("failed to read app metrics: %w", err)
	}
	if len(fields) == 0 {
		return game.AppMetrics{GameState: "no-game"}, nil
	}

	numPlayers, _ := strconv.Atoi(fields["numPlayers"])
	numAdmins, _ := strconv.Atoi(fields["numAdmins"])
	locked, _ := strconv.ParseBool(fields["gameLocked"])
	return game.AppMetrics{
		NumPlayers: numPlayers,
		NumAdmins:  numAdmins,
		GameState:  fields["gameState"],
		GameLocked: locked,
	}, nil
}

func (s *RedisMetrics) WriteAppMetrics(metrics game.AppMetrics) error {
	err := s.rdb.HSet(s.ctx, metricsKey,
		"numPlayers", metrics.NumPlayers,
		"numAdmins", metrics.NumAdmins,
		"gameState", metrics.GameState,
		"gameLocked", strconv.FormatBool(metrics.GameLocked),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write app metrics: %w", err)
	}
	return nil
}
