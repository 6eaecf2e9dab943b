package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/config"
)

// Device-local store: a handful of connections is plenty.
const (
	localPoolSize    = 4
	localDialTimeout = 2 * time.Second
	startupPingWait  = 5 * time.Second
)

// NewRedisClient connects to the device's credential store. The login
// screen writes the candidate token there before the agent starts.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = localPoolSize
	}
	opt.DialTimeout = localDialTimeout

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, startupPingWait)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("credential store at %s unreachable: %w", opt.Addr, err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Int("pool_size", opt.PoolSize).
		Msg("Credential store connected")

	return rdb, nil
}
