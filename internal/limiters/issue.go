// Package limiters holds Redis-backed fixed-window throttles.
package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrIssueRateLimited      = errors.New("pin issue rate limited")
	ErrIssueRedisUnavailable = errors.New("pin issue limiter unavailable")
)

type IssueConfig struct {
	MaxPerWindow int
	Window       time.Duration
}

// IssueLimiter caps how many PINs one account may request per window,
// per purpose, so resends cannot be used to flood a mailbox or phone.
type IssueLimiter struct {
	redis  redis.UniversalClient
	config IssueConfig
}

func NewIssueLimiter(redisClient redis.UniversalClient, cfg IssueConfig) *IssueLimiter {
	return &IssueLimiter{redis: redisClient, config: cfg}
}

func (l *IssueLimiter) Allow(ctx context.Context, email string, recovery bool) error {
	if l == nil || l.redis == nil || l.config.MaxPerWindow <= 0 {
		return nil
	}
	key := issueKey(email, recovery)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIssueRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrIssueRedisUnavailable, err)
		}
	}
	if count > int64(l.config.MaxPerWindow) {
		return ErrIssueRateLimited
	}
	return nil
}

func issueKey(email string, recovery bool) string {
	if recovery {
		return "pin:issue:recovery:" + email
	}
	return "pin:issue:verify:" + email
}
