package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const device = "4f1c2b1e-8f5d-4a36-9b0e-0c1d2e3f4a5b"

func newTestStore(t *testing.T, mr *miniredis.Miniredis, clk clock.Clock) *Store {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, zaptest.NewLogger(t), clk, nil)
}

func testIdentity(now time.Time) *domain.Identity {
	return &domain.Identity{
		ID:        "1001",
		Email:     "ana@example.com",
		SessionID: "01J0000000000000000000000A",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

type recorder struct {
	mu     sync.Mutex
	events []*domain.Identity
	calls  int
}

func (r *recorder) fn(identity *domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.events = append(r.events, identity)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestGetMissingSessionIsNotAnError(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newTestStore(t, mr, clock.NewFakeClock(time.Now()))

	identity, err := store.Get(context.Background(), device)
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestSignInThenGet(t *testing.T) {
	mr := miniredis.RunT(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	store := newTestStore(t, mr, clk)
	ctx := context.Background()

	want := testIdentity(clk.Now())
	require.NoError(t, store.SignIn(ctx, device, want))

	got, err := store.Get(ctx, device)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
	assert.Equal(t, time.Hour, mr.TTL("session:"+device))
}

func TestExpiredRecordReadsAsSignedOut(t *testing.T) {
	mr := miniredis.RunT(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	store := newTestStore(t, mr, clk)
	ctx := context.Background()

	require.NoError(t, store.SignIn(ctx, device, testIdentity(clk.Now())))
	clk.Advance(2 * time.Hour)

	got, err := store.Get(ctx, device)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetWrapsTransportFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newTestStore(t, mr, clock.NewFakeClock(time.Now()))
	mr.Close()

	_, err := store.Get(context.Background(), device)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionRead)
}

func TestGetWrapsCorruptRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newTestStore(t, mr, clock.NewFakeClock(time.Now()))
	require.NoError(t, mr.Set("session:"+device, "{not json"))

	_, err := store.Get(context.Background(), device)
	assert.ErrorIs(t, err, domain.ErrSessionRead)
}

func TestExtendKeepsIdentityAndMovesExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	store := newTestStore(t, mr, clk)
	ctx := context.Background()

	original := testIdentity(clk.Now())
	require.NoError(t, store.SignIn(ctx, device, original))

	next, err := store.Extend(ctx, device, clk.Now().Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, original.ID, next.ID)
	assert.Equal(t, original.SessionID, next.SessionID)
	assert.True(t, next.ExpiresAt.Equal(clk.Now().Add(3*time.Hour)))
	assert.Equal(t, 3*time.Hour, mr.TTL("session:"+device))
}

func TestExtendWithoutSession(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newTestStore(t, mr, clock.NewFakeClock(time.Now()))

	_, err := store.Extend(context.Background(), device, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLocalWatchersSeeEventsBeforeWriteReturns(t *testing.T) {
	mr := miniredis.RunT(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	store := newTestStore(t, mr, clk)
	ctx := context.Background()

	rec := &recorder{}
	cancel := store.Provider(device).OnSessionChange(rec.fn)
	defer cancel()

	require.NoError(t, store.SignIn(ctx, device, testIdentity(clk.Now())))
	require.Equal(t, 1, rec.count())
	assert.Equal(t, "1001", rec.events[0].ID)

	require.NoError(t, store.SignOut(ctx, device))
	require.Equal(t, 2, rec.count())
	assert.Nil(t, rec.events[1])
}

func TestWatchCancelStopsDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	clk := clock.NewFakeClock(time.Now())
	store := newTestStore(t, mr, clk)

	rec := &recorder{}
	cancel := store.Provider(device).OnSessionChange(rec.fn)
	cancel()
	cancel()

	require.NoError(t, store.SignIn(context.Background(), device, testIdentity(clk.Now())))
	assert.Zero(t, rec.count())
}

func TestEventsReachOtherInstancesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	a := newTestStore(t, mr, clk)
	b := newTestStore(t, mr, clk)
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	t.Cleanup(func() {
		_ = a.Stop(ctx)
		_ = b.Stop(ctx)
	})

	local := &recorder{}
	remote := &recorder{}
	defer a.Provider(device).OnSessionChange(local.fn)()
	defer b.Provider(device).OnSessionChange(remote.fn)()

	require.NoError(t, a.SignIn(ctx, device, testIdentity(clk.Now())))

	assert.Eventually(t, func() bool { return remote.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	// Give the echo of the local publish time to arrive; it must be dropped.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, local.count())
	assert.Equal(t, 1, remote.count())
}
