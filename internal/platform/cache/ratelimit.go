package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// limiterScript is a token bucket evaluated atomically in redis. State per
// key is a hash of tokens and the last refill timestamp; refill is computed
// lazily from elapsed intervals.
var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// RateLimiter is a redis-backed token bucket shared across instances.
type RateLimiter struct {
	rdb            *redis.Client
	capacity       int
	refillTokens   int
	refillInterval time.Duration
	ttl            time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func NewRateLimiter(rdb *redis.Client, capacity, refillTokens int, refillInterval time.Duration) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillTokens < 1 {
		refillTokens = 1
	}
	if refillInterval <= 0 {
		refillInterval = time.Second
	}
	return &RateLimiter{
		rdb:            rdb,
		capacity:       capacity,
		refillTokens:   refillTokens,
		refillInterval: refillInterval,
		ttl:            10 * refillInterval,
	}
}

// Allow consumes one token for the key. Redis errors fail open so a cache
// outage never takes the scanner down with it.
func (l *RateLimiter) Allow(ctx context.Context, key string) Decision {
	if l.rdb == nil {
		return Decision{Allowed: true}
	}
	vals, err := limiterScript.Run(ctx, l.rdb, []string{"rl:" + key},
		time.Now().UnixMilli(),
		l.capacity,
		l.refillTokens,
		l.refillInterval.Milliseconds(),
		int64(l.ttl/time.Second),
	).Result()
	if err != nil {
		return Decision{Allowed: true}
	}

	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}
}

// Capacity reports the configured bucket size for response headers.
func (l *RateLimiter) Capacity() int { return l.capacity }

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}
