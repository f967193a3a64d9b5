package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var errNotConfigured = errors.New("redis_not_configured")

// counter is the slice of the go-redis API the limiter uses.
type counter interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
	PTTL(ctx context.Context, key string) *goredis.DurationCmd
}

// Limiter is a fixed-window counter shared by every API replica.
type Limiter struct {
	c      counter
	prefix string
}

func NewLimiter(c *goredis.Client, prefix string) *Limiter {
	l := &Limiter{prefix: prefix}
	if c != nil {
		l.c = c
	}
	return l
}

func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if l == nil || l.c == nil {
		return false, 0, errNotConfigured
	}
	k := l.prefix + key
	n, err := l.c.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit incr: %w", err)
	}
	if n == 1 {
		if err := l.c.PExpire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	if n <= int64(limit) {
		return true, 0, nil
	}
	ttl, err := l.c.PTTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return false, ttl, nil
}
