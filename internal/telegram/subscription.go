package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"referral_bot/internal/logger"
	"referral_bot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	redis "github.com/redis/go-redis/v9"
)

const (
	checkTimeout = 5 * time.Second
	cacheTTL     = time.Minute
)

// SubscriptionChecker answers whether a user is a member of the
// required channel. Check failures and timeouts are logged and treated
// as "not subscribed", never as a crash.
type SubscriptionChecker struct {
	channel string
	fetch   func(ctx context.Context, userID int64) (string, error)
	cache   *redis.Client // nil when not configured; fail-open
	log     *slog.Logger
}

// NewSubscriptionChecker builds a checker for the given channel.
// cache may be nil to disable caching of positive results.
func NewSubscriptionChecker(api *tgbotapi.BotAPI, channel string, cache *redis.Client) *SubscriptionChecker {
	c := &SubscriptionChecker{
		channel: channel,
		cache:   cache,
		log:     logger.With("component", "subscription_checker"),
	}
	c.fetch = func(ctx context.Context, userID int64) (string, error) {
		type result struct {
			status string
			err    error
		}
		ch := make(chan result, 1)
		go func() {
			member, err := api.GetChatMember(tgbotapi.GetChatMemberConfig{
				ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
					SuperGroupUsername: channel,
					UserID:             userID,
				},
			})
			ch <- result{status: member.Status, err: err}
		}()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r := <-ch:
			return r.status, r.err
		}
	}
	return c
}

// IsSubscribed reports whether the user currently satisfies the
// subscription gate.
func (c *SubscriptionChecker) IsSubscribed(ctx context.Context, userID int64) bool {
	if c.cachedSubscribed(ctx, userID) {
		c.log.Debug("subscription cache hit", "user_id", userID)
		metrics.SubscriptionChecks.WithLabelValues("subscribed").Inc()
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status, err := c.fetch(ctx, userID)
	if err != nil {
		c.log.Error("subscription check failed", "user_id", userID, "error", err)
		metrics.SubscriptionChecks.WithLabelValues("error").Inc()
		return false
	}

	if !statusSubscribed(status) {
		metrics.SubscriptionChecks.WithLabelValues("not_subscribed").Inc()
		return false
	}

	// Only positive results are cached, so a user who subscribes
	// right after a negative check is not locked out for the TTL.
	c.cacheSubscribed(ctx, userID)
	metrics.SubscriptionChecks.WithLabelValues("subscribed").Inc()
	return true
}

func statusSubscribed(status string) bool {
	switch status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}

func (c *SubscriptionChecker) cachedSubscribed(ctx context.Context, userID int64) bool {
	if c.cache == nil {
		return false
	}
	v, err := c.cache.Get(ctx, c.cacheKey(userID)).Result()
	return err == nil && v == "1"
}

func (c *SubscriptionChecker) cacheSubscribed(ctx context.Context, userID int64) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey(userID), "1", cacheTTL).Err(); err != nil {
		c.log.Warn("subscription cache write failed", "error", err)
	}
}

func (c *SubscriptionChecker) cacheKey(userID int64) string {
	return "sub:" + c.channel + ":" + strconv.FormatInt(userID, 10)
}
