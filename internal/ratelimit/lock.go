package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockHeld    = errors.New("lock is held by another owner")
	ErrLockInvalid = errors.New("invalid lock request")
)

// Deletes the key only while it still carries the caller's token, so an
// expired lease cannot remove a lock someone else has taken since.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out short-lived exclusive leases on Redis keys.
type Locker struct {
	client *redis.Client
	unlock *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client, unlock: redis.NewScript(unlockScript)}
}

// Lease is one held lock. Release it once the guarded work is done; it
// expires on its own after the TTL otherwise.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func (l *Lease) Key() string { return l.key }

// Acquire takes the lock on key for ttl, or fails with ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("%w: no redis client", ErrLockInvalid)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrLockInvalid)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrLockInvalid)
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

// Release gives the lock up. Releasing an expired or already released lease
// is not an error.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.token == "" {
		return nil
	}
	err := l.locker.unlock.Run(ctx, l.locker.client, []string{l.key}, l.token).Err()
	l.token = ""
	return err
}
