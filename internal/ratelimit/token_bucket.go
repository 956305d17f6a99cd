package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrNotConfigured = errors.New("ratelimit: no redis client")
	ErrInvalidLimit  = errors.New("ratelimit: invalid limit")
)

// takeScript refills the bucket in KEYS[1] for the time elapsed since its last
// update, then takes one token if there is one. Redis truncates Lua numbers
// to integers on the way out, so the balance is returned as a string.
//
// ARGV: rate (tokens/s), burst, idle expiry (ms).
// Returns: {taken, balance, redis time in ms}.
var takeScript = redis.NewScript(`
local rate, burst, expiry = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
local clock = redis.call("TIME")
local now = tonumber(clock[1]) * 1000 + math.floor(tonumber(clock[2]) / 1000)

local state = redis.call("HMGET", KEYS[1], "balance", "updated")
local balance, updated = tonumber(state[1]), tonumber(state[2])
if balance == nil then
  balance = burst
else
  local elapsed = math.max(now - updated, 0)
  balance = math.min(burst, balance + elapsed * rate / 1000)
end

local taken = 0
if balance >= 1 then
  taken = 1
  balance = balance - 1
end

redis.call("HSET", KEYS[1], "balance", tostring(balance), "updated", now)
redis.call("PEXPIRE", KEYS[1], expiry)
return {taken, tostring(balance), now}
`)

// Limit is a refill rate in tokens per second and the most tokens a bucket
// may hold.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) validate() error {
	if l.Rate <= 0 || math.IsInf(l.Rate, 0) || math.IsNaN(l.Rate) {
		return fmt.Errorf("%w: rate %v", ErrInvalidLimit, l.Rate)
	}
	if l.Burst <= 0 {
		return fmt.Errorf("%w: burst %d", ErrInvalidLimit, l.Burst)
	}
	return nil
}

// idleExpiry is how long an untouched bucket is kept: twice the time it takes
// to refill from empty, and at least a second. A bucket that expires is full
// again anyway.
func (l Limit) idleExpiry() time.Duration {
	return max(time.Duration(math.Ceil(2*float64(l.Burst)/l.Rate))*time.Second, time.Second)
}

// Result is the outcome of one Take.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Bucket is a token bucket shared by every instance through Redis.
type Bucket struct {
	client *redis.Client
}

func NewBucket(client *redis.Client) *Bucket {
	return &Bucket{client: client}
}

// Take removes one token from the bucket at key. A denied Result carries how
// long until a token is available.
func (b *Bucket) Take(ctx context.Context, key string, limit Limit) (Result, error) {
	if b == nil || b.client == nil {
		return Result{}, ErrNotConfigured
	}
	if key == "" {
		return Result{}, fmt.Errorf("%w: empty key", ErrInvalidLimit)
	}
	if err := limit.validate(); err != nil {
		return Result{}, err
	}

	reply, err := takeScript.Run(ctx, b.client, []string{key},
		limit.Rate, limit.Burst, limit.idleExpiry().Milliseconds(),
	).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("take %s: %w", key, err)
	}
	if len(reply) != 3 {
		return Result{}, fmt.Errorf("take %s: unexpected reply %v", key, reply)
	}

	taken, _ := reply[0].(int64)
	balance, err := strconv.ParseFloat(fmt.Sprint(reply[1]), 64)
	if err != nil {
		return Result{}, fmt.Errorf("take %s: balance: %w", key, err)
	}
	nowMillis, _ := reply[2].(int64)

	res := Result{
		Allowed:   taken == 1,
		Limit:     limit.Burst,
		Remaining: int(balance),
	}
	if !res.Allowed {
		res.RetryAfter = time.Duration((1 - balance) / limit.Rate * float64(time.Second))
	}
	res.ResetAt = time.UnixMilli(nowMillis).Add(res.RetryAfter)
	return res, nil
}
