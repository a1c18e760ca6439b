package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewLimiter(Params{Config: config.Config{}, Log: zap.NewNop()})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	result, err := limiter.Allow(context.Background(), EndpointInvite, 1)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	token, ok, err := limiter.TryLockInvite(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, limiter.ReleaseInvite(context.Background(), 1, 2, token))
}

func TestEnabledLimiterRequiresRedisAddr(t *testing.T) {
	_, err := NewLimiter(Params{
		Config: config.Config{RateLimit: config.RateLimitConfig{Enabled: true}},
		Log:    zap.NewNop(),
	})
	assert.Error(t, err)
}

func TestNewLimiterValidatesRates(t *testing.T) {
	_, err := newLimiter(config.RateLimitConfig{InviteRate: 1, InviteBurst: 1}, nil, nil)
	assert.Error(t, err)

	limiter, err := newLimiter(config.RateLimitConfig{InviteRate: 1, InviteBurst: 1, UploadRate: 1, UploadBurst: 1}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, limiter.lockTTL)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "pitchdeck:ratelimit:invite:user:9", bucketKey(EndpointInvite, 9))
	assert.Equal(t, "pitchdeck:lock:invite:1:2", inviteLockKey(1, 2))
}

func TestPolicyKeyTTL(t *testing.T) {
	assert.Equal(t, 40*time.Second, Policy{Rate: 0.5, Burst: 10}.keyTTL())
	assert.Equal(t, time.Second, Policy{Rate: 100, Burst: 1}.keyTTL())
	assert.Error(t, Policy{Rate: 1}.validate())
}

func TestDecodeReply(t *testing.T) {
	policy := Policy{Rate: 0.5, Burst: 3}

	denied, err := decodeReply([]int64{0, 0, 1_700_000_000_000, 2000}, policy)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 3, denied.Limit)
	assert.Equal(t, 2*time.Second, denied.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_700_000_002_000), denied.ResetTime)

	allowed, err := decodeReply([]int64{1, 2, 1_700_000_000_000, 0}, policy)
	require.NoError(t, err)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 2, allowed.Remaining)
	assert.Zero(t, allowed.RetryAfter)

	_, err = decodeReply([]int64{1, 2}, policy)
	assert.Error(t, err)
}

func TestLimiterWithoutClientFailsLock(t *testing.T) {
	limiter, err := newLimiter(config.RateLimitConfig{InviteRate: 1, InviteBurst: 1, UploadRate: 1, UploadBurst: 1}, nil, nil)
	require.NoError(t, err)

	_, ok, err := limiter.TryLockInvite(context.Background(), 1, 2)
	assert.Error(t, err)
	assert.False(t, ok)

	_, err = limiter.Allow(context.Background(), "download", 1)
	assert.Error(t, err)
}
