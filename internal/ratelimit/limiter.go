package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/smallbiznis/pitchdeck/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	EndpointInvite = "invite"
	EndpointUpload = "upload"
)

const (
	keyUserBucket = "pitchdeck:ratelimit:%s:user:%s"
	keyInviteLock = "pitchdeck:lock:invite:%s:%s"
)

// Limiter throttles invite creation and media uploads per user.
// A nil Limiter allows everything.
type Limiter struct {
	enabled bool

	bucket   *tokenBucket
	lock     *keyLock
	metrics  *metrics.Metrics
	policies map[string]Policy
	lockTTL  time.Duration
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

func NewLimiter(p Params) (*Limiter, error) {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}

	limiter, err := newLimiter(cfg, client, p.Metrics)
	if err != nil {
		return nil, err
	}
	p.Log.Named("ratelimit").Info("rate limiting enabled", zap.String("redis_addr", addr))
	return limiter, nil
}

func newLimiter(cfg config.RateLimitConfig, client redis.Cmdable, m *metrics.Metrics) (*Limiter, error) {
	policies := map[string]Policy{
		EndpointInvite: {Rate: cfg.InviteRate, Burst: cfg.InviteBurst},
		EndpointUpload: {Rate: cfg.UploadRate, Burst: cfg.UploadBurst},
	}
	for endpoint, policy := range policies {
		if err := policy.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", endpoint, err)
		}
	}
	lockTTL := cfg.InviteLockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &Limiter{
		enabled:  true,
		bucket:   newTokenBucket(client),
		lock:     newKeyLock(client, lockTTL),
		metrics:  m,
		policies: policies,
		lockTTL:  lockTTL,
	}, nil
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one token of the caller's bucket for endpoint.
func (l *Limiter) Allow(ctx context.Context, endpoint string, userID snowflake.ID) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}

	policy, ok := l.policies[endpoint]
	if !ok {
		return nil, fmt.Errorf("unknown rate limit endpoint %q", endpoint)
	}

	result, err := l.bucket.take(ctx, bucketKey(endpoint, userID), policy)
	if err != nil {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "error")
		return nil, err
	}
	if result.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "limit")
	}
	return result, nil
}

// TryLockInvite serialises invite creation for one (organisation, invitee) pair.
func (l *Limiter) TryLockInvite(ctx context.Context, orgID, inviteeID snowflake.ID) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	if l.lock == nil {
		return "", false, errors.New("invite lock has no redis client")
	}
	return l.lock.acquire(ctx, inviteLockKey(orgID, inviteeID))
}

func (l *Limiter) ReleaseInvite(ctx context.Context, orgID, inviteeID snowflake.ID, token string) error {
	if !l.Enabled() || l.lock == nil {
		return nil
	}
	return l.lock.release(ctx, inviteLockKey(orgID, inviteeID), token)
}

func bucketKey(endpoint string, userID snowflake.ID) string {
	return fmt.Sprintf(keyUserBucket, endpoint, userID.String())
}

func inviteLockKey(orgID, inviteeID snowflake.ID) string {
	return fmt.Sprintf(keyInviteLock, orgID.String(), inviteeID.String())
}
