package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/voundbrand/gatehouse/internal/config"
)

var Module = fx.Module("ratelimit",
	fx.Provide(newRedisClient),
	fx.Provide(NewTokenBucket),
	fx.Provide(NewLocker),
)

// newRedisClient returns nil when no redis address is configured; the
// limiter and locker tolerate a nil client.
func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}
