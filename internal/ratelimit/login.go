package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/talentbay/internal/config"
)

const keyLoginAttempt = "ratelimit:login:%s:%s"

// LoginLimiter throttles sign-in attempts per client IP and email.
type LoginLimiter struct {
	enabled bool

	bucket *Bucket
	limit  Limit
}

func NewLoginLimiter(client *redis.Client, cfg config.Config) (*LoginLimiter, error) {
	limitCfg := cfg.LoginRateLimit
	if !limitCfg.Enabled {
		return &LoginLimiter{}, nil
	}
	if client == nil {
		return nil, errors.New("login rate limit requires redis")
	}
	limit := Limit{Rate: limitCfg.Rate, Burst: limitCfg.Burst}
	if err := limit.validate(); err != nil {
		return nil, fmt.Errorf("login rate limit: %w", err)
	}

	return &LoginLimiter{
		enabled: true,
		bucket:  NewBucket(client),
		limit:   limit,
	}, nil
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow takes one attempt from the bucket of ip and email. Emails are
// compared case-insensitively.
func (l *LoginLimiter) Allow(ctx context.Context, ip, email string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(
		keyLoginAttempt,
		strings.TrimSpace(ip),
		strings.ToLower(strings.TrimSpace(email)),
	)
	return l.bucket.Take(ctx, key, l.limit)
}
