package revocation

import (
	"context"
	"fmt"
	"time"

	"student-chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Limiter implements fixed window rate limiting on Redis counters.
type Limiter struct {
	client    redis.Cmdable
	keyPrefix string
	timeout   time.Duration
}

func NewLimiter(client redis.Cmdable, keyPrefix string, timeout time.Duration) *Limiter {
	return &Limiter{
		client:    client,
		keyPrefix: keyPrefix,
		timeout:   timeout,
	}
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Counter and expiry are set in one round trip; the window starts at the
// first hit and the key expires with it.
var fixedWindow = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return {current, ttl}
`)

// Allow counts one hit for key. Store failures allow the request.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Result {
	open := Result{Allowed: true, Limit: limit, Remaining: limit}
	if l.client == nil {
		return open
	}

	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	res, err := l.hit(ctx, key, window)
	if err != nil {
		logger.Warn("Rate limit check skipped for %s: %v", key, err)
		return open
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if count > limit {
		if ttl < 0 {
			ttl = window
		}
		return Result{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: ttl}
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - count}
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) ([]int64, error) {
	res, err := fixedWindow.Run(ctx, l.client, []string{l.keyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis script error: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected Redis response length: %d", len(res))
	}
	return res, nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l.client == nil {
		return nil
	}
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()
	return l.client.Del(ctx, l.keyPrefix+key).Err()
}
