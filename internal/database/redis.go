package database

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient connects to REDIS_URL. Redis holds refresh sessions, the
// quiz view cache, the streamed answer buffer and the persistence queue.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opt.ClientName = "learnhub"

	rdb := redis.NewClient(opt)
	ping := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	if err := retry(ctx, log.With().Str("store", "redis").Logger(), ping); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("Redis connected")
	return rdb, nil
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check pings every configured store and returns the failures by name.
// A nil store is skipped.
func Check(ctx context.Context, pg Pinger, rdb *redis.Client) map[string]string {
	failed := make(map[string]string)
	if pg != nil {
		if err := pg.Ping(ctx); err != nil {
			failed["postgres"] = err.Error()
		}
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			failed["redis"] = err.Error()
		}
	}
	return failed
}
