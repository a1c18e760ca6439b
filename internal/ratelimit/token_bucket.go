package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// KEYS[1] bucket hash. ARGV: refill per second, capacity, key ttl in ms.
// Replies {allowed, whole tokens left, server time ms, wait ms}.
const consumeScript = `
local refill = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local tokens = capacity
local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
if state[1] then
  local elapsed = math.max(0, now - tonumber(state[2]))
  tokens = math.min(capacity, tonumber(state[1]) + elapsed * refill / 1000)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * 1000 / refill)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, math.floor(tokens), now, wait}
`

// Policy is a refill rate in tokens per second with a bucket capacity.
type Policy struct {
	Rate  float64
	Burst int
}

func (p Policy) validate() error {
	if p.Rate <= 0 || p.Burst <= 0 {
		return fmt.Errorf("rate limit policy %v/%d must be positive", p.Rate, p.Burst)
	}
	return nil
}

// keyTTL keeps an idle bucket around for twice its full refill time.
func (p Policy) keyTTL() time.Duration {
	seconds := math.Max(1, math.Ceil(2*float64(p.Burst)/p.Rate))
	return time.Duration(seconds) * time.Second
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// tokenBucket runs the consume script against Redis so concurrent API
// instances share one bucket per key.
type tokenBucket struct {
	client redis.Scripter
	script *redis.Script
}

func newTokenBucket(client redis.Scripter) *tokenBucket {
	if client == nil {
		return nil
	}
	return &tokenBucket{client: client, script: redis.NewScript(consumeScript)}
}

func (b *tokenBucket) take(ctx context.Context, key string, policy Policy) (*RateLimitResult, error) {
	if b == nil {
		return nil, errors.New("token bucket has no redis client")
	}
	if key == "" {
		return nil, errors.New("token bucket key is empty")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}

	reply, err := b.script.Run(ctx, b.client, []string{key},
		policy.Rate, policy.Burst, policy.keyTTL().Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("token bucket %s: %w", key, err)
	}
	return decodeReply(reply, policy)
}

func decodeReply(reply []int64, policy Policy) (*RateLimitResult, error) {
	if len(reply) != 4 {
		return nil, fmt.Errorf("token bucket reply has %d values", len(reply))
	}
	wait := time.Duration(reply[3]) * time.Millisecond
	return &RateLimitResult{
		Allowed:    reply[0] == 1,
		Limit:      policy.Burst,
		Remaining:  int(reply[1]),
		ResetTime:  time.UnixMilli(reply[2]).Add(wait),
		RetryAfter: wait,
	}, nil
}
