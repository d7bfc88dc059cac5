// Package ratelimit enforces per-user, per-action quotas on mutations.
//
// Windows are fixed and aligned to the wall clock: every counter key embeds
// the window start, so a new window is simply a new key and old ones expire
// on their own.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Action string

const (
	ActionSendMessage       Action = "sendMessage"
	ActionGenerateUploadURL Action = "generateUploadUrl"
	ActionCreateWorkspace   Action = "createWorkspace"
	ActionCreateChannel     Action = "createChannel"
	ActionCreateDM          Action = "createDM"
	ActionAddReaction       Action = "addReaction"
	ActionCreateInvite      Action = "createInvite"
)

// Rule allows Limit calls per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func DefaultRules() map[Action]Rule {
	return map[Action]Rule{
		ActionSendMessage:       {Limit: 30, Window: time.Minute},
		ActionGenerateUploadURL: {Limit: 10, Window: time.Minute},
		ActionCreateWorkspace:   {Limit: 5, Window: time.Hour},
		ActionCreateChannel:     {Limit: 10, Window: time.Hour},
		ActionCreateDM:          {Limit: 20, Window: time.Hour},
		ActionAddReaction:       {Limit: 50, Window: time.Minute},
		ActionCreateInvite:      {Limit: 10, Window: time.Hour},
	}
}

// Limiter returns an apperr RATE_LIMITED error once key has used up the
// quota for action in the current window.
type Limiter interface {
	Limit(ctx context.Context, action Action, key string) error
}

type RedisLimiter struct {
	client *redis.Client
	rules  map[Action]Rule
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, rules map[Action]Rule, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		rules:  rules,
		prefix: "ratelimit:",
		logger: logger,
		now:    time.Now,
	}
}

// Limit counts the call and rejects it if it is over quota. Actions with
// no rule are unlimited. A Redis failure lets the call through: losing
// the quota for a while is better than refusing every message.
func (l *RedisLimiter) Limit(ctx context.Context, action Action, key string) error {
	rule, ok := l.rules[action]
	if !ok {
		return nil
	}

	now := l.now()
	windowStart := now.Truncate(rule.Window)
	windowEnd := windowStart.Add(rule.Window)
	counterKey := fmt.Sprintf("%s%s:%s:%d", l.prefix, action, key, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, windowEnd.Sub(now))
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RateLimiterErrorsTotal.Inc()
		l.logger.Warn("rate limiter unavailable, allowing request",
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return nil
	}

	if incr.Val() > int64(rule.Limit) {
		metrics.RateLimitedTotal.WithLabelValues(string(action)).Inc()
		retryIn := windowEnd.Sub(now).Round(time.Second)
		return apperr.RateLimited(fmt.Sprintf("Too many requests. Try again in %s.", retryIn))
	}
	return nil
}

// Unlimited never rejects. Used when no Redis is configured.
type Unlimited struct{}

func (Unlimited) Limit(context.Context, Action, string) error { return nil }
