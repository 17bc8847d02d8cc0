package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"votechain/internal/ratelimit"
)

const keyPrefix = "vc:ratelimit:"

// slidingWindowScript trims the sorted set to the window, then admits the
// request if there is room. Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  count = count + 1
  allowed = 1
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then
  first = tonumber(oldest[2])
end
return {allowed, count, first}
`)

// RedisStore shares one sliding window per key across replicas.
type RedisStore struct {
	client redis.Scripter
}

func NewRedis(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (ratelimit.Result, error) {
	vals, err := slidingWindowScript.Run(ctx, s.client, []string{keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return ratelimit.Result{}, fmt.Errorf("rate limit script: unexpected reply length %d", len(vals))
	}
	allowed, count := vals[0] == 1, int(vals[1])
	res := ratelimit.Result{
		Allowed: allowed,
		Limit:   limit,
		ResetAt: time.UnixMilli(vals[2]).Add(window),
	}
	if allowed {
		res.Remaining = limit - count
	}
	return res, nil
}
