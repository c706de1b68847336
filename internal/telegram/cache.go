package telegram

import (
	"context"
	"time"

	"referral_bot/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// NewCache connects the optional Redis cache. Returns nil when addr is
// empty or the server is unreachable, so callers stay fail-open.
func NewCache(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, subscription cache disabled", "error", err)
		return nil
	}

	logger.Info("redis connected", "addr", addr)
	return client
}
