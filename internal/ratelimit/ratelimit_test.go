package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestBucketAllowsBurstThenRefills(t *testing.T) {
	mr, client := newRedis(t)
	bucket := NewBucket(client)
	limit := Limit{Rate: 1, Burst: 2}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := bucket.Take(ctx, "bucket:a", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
	}

	res, err := bucket.Take(ctx, "bucket:a", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, time.Second, res.RetryAfter)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC), res.ResetAt.UTC())

	mr.SetTime(time.Date(2026, 3, 1, 12, 0, 1, 500_000_000, time.UTC))
	res, err = bucket.Take(ctx, "bucket:a", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// Half a token is left over and survives the round trip.
	res, err = bucket.Take(ctx, "bucket:a", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)
}

func TestBucketExpiresWhenIdle(t *testing.T) {
	mr, client := newRedis(t)
	bucket := NewBucket(client)

	_, err := bucket.Take(context.Background(), "bucket:idle", Limit{Rate: 1, Burst: 2})
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, mr.TTL("bucket:idle"))
}

func TestBucketRejectsBadInput(t *testing.T) {
	_, client := newRedis(t)
	bucket := NewBucket(client)
	ctx := context.Background()

	_, err := bucket.Take(ctx, "", Limit{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = bucket.Take(ctx, "k", Limit{Burst: 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = bucket.Take(ctx, "k", Limit{Rate: 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)

	var nilBucket *Bucket
	_, err = nilBucket.Take(ctx, "k", Limit{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLoginLimiterKeysByIPAndEmail(t *testing.T) {
	_, client := newRedis(t)
	limiter, err := NewLoginLimiter(client, config.Config{
		LoginRateLimit: config.LoginRateLimitConfig{Enabled: true, Rate: 0.1, Burst: 1},
	})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "10.0.0.1", "Ana@Example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "10.0.0.1", "ana@example.com ")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.Allow(ctx, "10.0.0.1", "bo@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "10.0.0.2", "ana@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLoginLimiterDisabled(t *testing.T) {
	limiter, err := NewLoginLimiter(nil, config.Config{})
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "10.0.0.1", "ana@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLoginLimiterConfigErrors(t *testing.T) {
	_, err := NewLoginLimiter(nil, config.Config{LoginRateLimit: config.LoginRateLimitConfig{Enabled: true, Rate: 1, Burst: 1}})
	assert.Error(t, err)

	_, client := newRedis(t)
	_, err = NewLoginLimiter(client, config.Config{LoginRateLimit: config.LoginRateLimitConfig{Enabled: true}})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestLockerLeaseIsExclusive(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "lock:seed", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "lock:seed", lease.Key())

	_, err = locker.Acquire(ctx, "lock:seed", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("lock:seed"))
	require.NoError(t, lease.Release(ctx))

	_, err = locker.Acquire(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrLockInvalid)
	_, err = locker.Acquire(ctx, "lock:x", 0)
	assert.ErrorIs(t, err, ErrLockInvalid)
}

func TestExpiredLeaseDoesNotReleaseNewOwner(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "lock:seed", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	current, err := locker.Acquire(ctx, "lock:seed", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("lock:seed"))

	require.NoError(t, current.Release(ctx))
	assert.False(t, mr.Exists("lock:seed"))
}
