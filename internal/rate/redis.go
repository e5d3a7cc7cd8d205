package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "techfest:rl:"

// windowScript increments the counter for a key and stamps the window TTL
// in the same call, so two instances cannot both open a window. It replies
// {allowed, remaining window in ms}.
var windowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end

local remaining = redis.call("PTTL", KEYS[1])
if remaining < 0 then
  remaining = tonumber(ARGV[2])
end

if hits > tonumber(ARGV[1]) then
  return {0, remaining}
end
return {1, remaining}
`)

// RedisLimiter is a fixed-window counter shared across server instances,
// used for the login endpoints in production.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	if l.window <= 0 {
		return false, 0, errors.New("rate: window must be positive")
	}

	res, err := windowScript.Run(ctx, l.client, []string{l.prefix + key}, l.limit, l.window.Milliseconds()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate: run window script: %w", err)
	}
	return parseScriptReply(res)
}

func parseScriptReply(res interface{}) (bool, time.Duration, error) {
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("rate: unexpected script reply %T", res)
	}

	allowed, okA := vals[0].(int64)
	remainingMS, okR := vals[1].(int64)
	if !okA || !okR {
		return false, 0, fmt.Errorf("rate: unexpected script reply values %v", vals)
	}

	retryAfter := time.Duration(remainingMS) * time.Millisecond
	if retryAfter < 0 {
		retryAfter = 0
	}
	return allowed == 1, retryAfter, nil
}
