package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript opens the window on the first hit and never extends it.
// Rejected hits are rolled back so the stored count stays at the limit.
var incrementScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
	redis.call("DECR", KEYS[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisStore keeps counters in Redis so every API process shares them
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Increment runs INCR and PEXPIRE as one script, atomic on the server
func (s *RedisStore) Increment(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := incrementScript.Run(ctx, s.client, []string{key}, window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment counter: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("unexpected script reply of length %d", len(vals))
	}

	count, ttl := vals[0], vals[1]
	if ttl < 0 {
		ttl = window.Milliseconds()
	}

	return Result{
		Allowed:    count <= int64(limit),
		Count:      count,
		RetryAfter: time.Duration(ttl) * time.Millisecond,
	}, nil
}
