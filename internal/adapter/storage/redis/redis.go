package redis

import (
	"context"
	"fmt"
	"time"

	"webhook-engine/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis only backs the rate limit counters and the readiness probe; every
// command is a single INCR/EXPIRE or PING round trip on the request path.
// Timeouts stay short so a slow Redis degrades rate limiting instead of
// stalling API requests.
const (
	dialTimeout    = 2 * time.Second
	commandTimeout = 500 * time.Millisecond
)

// NewClient creates the Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("Redis connected for rate limiting")

	return client, nil
}
