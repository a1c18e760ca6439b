package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Deletes KEYS[1] only while it still holds the caller's token.
const unlockScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`

// keyLock is a short-lived mutual exclusion on a Redis key. The holder is
// identified by a random token so an expired holder cannot release a newer one.
type keyLock struct {
	client redis.Cmdable
	unlock *redis.Script
	ttl    time.Duration
}

func newKeyLock(client redis.Cmdable, ttl time.Duration) *keyLock {
	if client == nil {
		return nil
	}
	return &keyLock{client: client, unlock: redis.NewScript(unlockScript), ttl: ttl}
}

func (k *keyLock) acquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := k.client.SetNX(ctx, key, token, k.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (k *keyLock) release(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	return k.unlock.Run(ctx, k.client, []string{key}, token).Err()
}
