package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// luaSlidingWindow trims entries older than the window, then admits the call
// when fewer than limit remain.
const luaSlidingWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`

// RateLimiter admits at most limit calls per key within a sliding window.
type RateLimiter struct {
	client    Commander
	limit     int
	window    time.Duration
	now       func() time.Time
	newMember func() string
}

// NewRateLimiter creates a sliding window limiter.
func NewRateLimiter(client Commander, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		now:       time.Now,
		newMember: uuid.NewString,
	}
}

// Allow records a call for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Eval(ctx, luaSlidingWindow, []string{RateKey(key)},
		r.now().UnixMilli(),
		r.window.Milliseconds(),
		r.limit,
		r.newMember(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
