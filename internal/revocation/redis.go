package revocation

import (
	"context"

	"student-chat/internal/config"
	"student-chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the revocation store. An unreachable store is
// logged and the client is still returned, since every consumer fails open.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis not reachable at %s, revocation and rate limiting fail open: %v", cfg.Addr, err)
	} else {
		logger.Info("Connected to Redis at %s", cfg.Addr)
	}
	return client
}
