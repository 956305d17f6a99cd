// Package authsession reconciles a device's remote session with its local
// profile and publishes the result as a sequence of View snapshots.
package authsession

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/smallbiznis/talentbay/internal/observability/errorsink"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/pkg/telemetry"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("authsession: controller closed")

// ProfileFinder is the read side of the profile repository.
type ProfileFinder interface {
	FindProfileByIdentity(ctx context.Context, identityID string) (*profiledomain.Profile, error)
}

type Option func(*Controller)

func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

func WithErrorSink(sink errorsink.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithClock sets the clock used to decide when a signed-in identity expires.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// subscriber is one listener. mu is held by the dispatcher from the active
// check until fn returns, so unsubscribe can wait out a call in progress.
type subscriber struct {
	fn      func(View)
	mu      sync.Mutex
	active  atomic.Bool
	calling atomic.Bool
}

// Controller owns the view of one device.
//
// Every session event and every Refresh bumps the generation. Asynchronous
// session reads and profile lookups carry the generation they started under
// and their results are dropped unless it is still current, so a slow lookup
// can never overwrite the outcome of a newer event.
type Controller struct {
	provider authdomain.SessionProvider
	profiles ProfileFinder
	log      *zap.Logger
	sink     errorsink.Sink
	metrics  *telemetry.Metrics
	clock    clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	view   atomic.Pointer[View]
	closed atomic.Bool

	mu        sync.Mutex
	cond      *sync.Cond
	gen       uint64
	forced    bool
	queue     []View
	subs      map[uint64]*subscriber
	nextSubID uint64
	changed   chan struct{}
	stopWatch func()
	expiry    *time.Timer
}

// New starts the controller: it subscribes to session changes and begins the
// first session read. The initial view is Initializing.
func New(provider authdomain.SessionProvider, profiles ProfileFinder, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		provider: provider,
		profiles: profiles,
		log:      zap.NewNop(),
		sink:     errorsink.Func(nil),
		clock:    clock.SystemClock{},
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[uint64]*subscriber),
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cond = sync.NewCond(&c.mu)
	c.view.Store(&View{Status: StatusInitializing})

	go c.dispatch()

	stop := provider.OnSessionChange(c.onSessionChange)

	c.mu.Lock()
	c.stopWatch = stop
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.readSession(gen, false)
	return c
}

// View returns the latest snapshot without blocking.
func (c *Controller) View() View {
	return *c.view.Load()
}

// Subscribe registers fn for every future view change. Calls are made from a
// single goroutine in commit order. No call starts after unsubscribe returns:
// unless fn is already running, unsubscribe waits until the dispatcher has
// passed it. Unsubscribing from inside fn is allowed.
func (c *Controller) Subscribe(fn func(View)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return func() {}
	}

	c.nextSubID++
	id := c.nextSubID
	s := &subscriber{fn: fn}
	s.active.Store(true)
	c.subs[id] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			if !s.calling.Load() {
				// The dispatcher may have passed the active check already.
				s.mu.Lock()
				s.mu.Unlock()
			}
		})
	}
}

// Refresh re-reads the session and, when signed in, the profile. The current
// view stays visible until the new result is committed. A token refresh that
// arrives before the profile is re-read does not skip the lookup.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.forced = true
	c.mu.Unlock()

	go c.readSession(gen, true)
}

// ExpireIfDue signs the view out when its identity has expired by the
// controller's clock. It reports whether the view changed.
func (c *Controller) ExpireIfDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return false
	}
	cur := c.View()
	if cur.Identity == nil || !cur.Identity.Expired(c.clock.Now()) {
		return false
	}
	return c.expireLocked(cur.Identity)
}

// onExpiryTimer runs when the timer set by armExpiry fires. A timer that
// fires early by the controller's clock is set again.
func (c *Controller) onExpiryTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	cur := c.View()
	switch {
	case cur.Identity == nil:
	case cur.Identity.Expired(c.clock.Now()):
		c.expireLocked(cur.Identity)
	default:
		c.armExpiry(cur.Identity)
	}
}

func (c *Controller) expireLocked(expired *authdomain.Identity) bool {
	c.gen++
	c.forced = false
	c.log.Info("session expired",
		zap.Uint64("generation", c.gen),
		zap.String("identity_id", expired.ID),
		zap.Time("expires_at", expired.ExpiresAt),
	)
	c.metrics.RecordSessionEvent("expired")
	return c.commitLocked(c.gen, View{Status: StatusReady})
}

// WaitSettled blocks until the view leaves Initializing, ctx is done or the
// controller is closed. It always returns the latest view.
func (c *Controller) WaitSettled(ctx context.Context) (View, error) {
	for {
		c.mu.Lock()
		v := c.View()
		changed := c.changed
		c.mu.Unlock()

		if v.Settled() {
			return v, nil
		}
		if c.closed.Load() {
			return v, ErrClosed
		}

		select {
		case <-ctx.Done():
			return c.View(), ctx.Err()
		case <-changed:
		}
	}
}

// Close releases the session subscription and silences all listeners.
// Pending reads are canceled and their results ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.closed.Store(true)
	c.queue = nil
	for id, s := range c.subs {
		s.active.Store(false)
		delete(c.subs, id)
	}
	close(c.changed)
	stop := c.stopWatch
	c.stopWatch = nil
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	c.cancel()
	if stop != nil {
		stop()
	}
}

func (c *Controller) Closed() bool {
	return c.closed.Load()
}

func (c *Controller) onSessionChange(identity *authdomain.Identity) {
	gen, ok := c.advance()
	if !ok {
		return
	}
	c.log.Debug("session changed", zap.Uint64("generation", gen), zap.Bool("signed_in", identity != nil))
	c.reconcile(gen, identity, false)
}

func (c *Controller) advance() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return 0, false
	}
	c.gen++
	return c.gen, true
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed.Load() && gen == c.gen
}

func (c *Controller) readSession(gen uint64, force bool) {
	identity, err := c.provider.CurrentSession(c.ctx)
	if !c.current(gen) {
		c.metrics.RecordStaleResult("session")
		return
	}
	if err != nil {
		if !errors.Is(err, authdomain.ErrSessionRead) {
			err = fmt.Errorf("%w: %w", authdomain.ErrSessionRead, err)
		}
		c.log.Warn("session read failed", zap.Uint64("generation", gen), zap.Error(err))
		c.sink.Report(c.ctx, err, map[string]string{"kind": "session_read"})
		c.settle(gen, View{Status: StatusError})
		return
	}
	c.reconcile(gen, identity, force)
}

// reconcile moves the view towards identity under generation gen.
func (c *Controller) reconcile(gen uint64, identity *authdomain.Identity, force bool) {
	if identity != nil && identity.Expired(c.clock.Now()) {
		c.log.Debug("ignoring expired identity", zap.Uint64("generation", gen), zap.String("identity_id", identity.ID))
		identity = nil
	}
	if identity == nil {
		c.settle(gen, View{Status: StatusReady})
		return
	}

	cur := c.View()
	sameIdentity := cur.Identity != nil && cur.Identity.ID == identity.ID
	if sameIdentity && cur.Status == StatusReady && !force && !c.refreshPending() {
		// Token refresh: the principal is unchanged, so the profile is too.
		c.commit(gen, View{Status: StatusReady, Identity: identity, Profile: cur.Profile})
		return
	}
	if !sameIdentity {
		c.commit(gen, View{Status: StatusInitializing})
	}

	go c.lookupProfile(gen, identity)
}

func (c *Controller) lookupProfile(gen uint64, identity *authdomain.Identity) {
	start := time.Now()
	profile, err := c.profiles.FindProfileByIdentity(c.ctx, identity.ID)
	elapsed := time.Since(start)

	if !c.current(gen) {
		c.metrics.RecordStaleResult("profile")
		return
	}

	log := c.log.With(zap.Uint64("generation", gen), zap.String("identity_id", identity.ID))
	switch {
	case err != nil:
		c.metrics.ObserveProfileLookup("error", elapsed)
		if !errors.Is(err, profiledomain.ErrProfileLookup) {
			err = fmt.Errorf("%w: %w", profiledomain.ErrProfileLookup, err)
		}
		log.Warn("profile lookup failed", zap.Error(err))
		c.sink.Report(c.ctx, err, map[string]string{
			"kind":        "profile_lookup",
			"identity_id": identity.ID,
		})
		profile = nil
	case profile == nil:
		c.metrics.ObserveProfileLookup("absent", elapsed)
		log.Debug("identity has no profile yet")
	default:
		c.metrics.ObserveProfileLookup("found", elapsed)
	}

	c.settle(gen, View{Status: StatusReady, Identity: identity, Profile: profile})
}

func (c *Controller) refreshPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forced
}

// settle commits a view that reflects a full read of the session and the
// profile, which completes any pending Refresh.
func (c *Controller) settle(gen uint64, next View) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed.Load() && gen == c.gen {
		c.forced = false
	}
	return c.commitLocked(gen, next)
}

// commit publishes next if gen is still current and next differs from the
// current view.
func (c *Controller) commit(gen uint64, next View) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked(gen, next)
}

func (c *Controller) commitLocked(gen uint64, next View) bool {
	if c.closed.Load() || gen != c.gen {
		c.metrics.RecordStaleResult("commit")
		return false
	}
	if c.View().Equal(next) {
		return false
	}

	snapshot := next
	c.view.Store(&snapshot)
	c.armExpiry(snapshot.Identity)
	c.queue = append(c.queue, snapshot)
	close(c.changed)
	c.changed = make(chan struct{})
	c.cond.Signal()

	c.metrics.RecordViewTransition(string(next.Status))
	return true
}

// armExpiry replaces the expiry timer with one for identity. Called with mu
// held.
func (c *Controller) armExpiry(identity *authdomain.Identity) {
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	if identity == nil {
		return
	}
	wait := max(identity.ExpiresAt.Sub(c.clock.Now()), 0)
	c.expiry = time.AfterFunc(wait, c.onExpiryTimer)
}

func (c *Controller) dispatch() {
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed.Load() {
			c.cond.Wait()
		}
		if c.closed.Load() {
			c.mu.Unlock()
			return
		}
		v := c.queue[0]
		c.queue = c.queue[1:]

		ids := make([]uint64, 0, len(c.subs))
		for id := range c.subs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		subs := make([]*subscriber, 0, len(ids))
		for _, id := range ids {
			subs = append(subs, c.subs[id])
		}
		c.mu.Unlock()

		for _, s := range subs {
			c.notify(s, v)
		}
	}
}

func (c *Controller) notify(s *subscriber, v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed.Load() || !s.active.Load() {
		return
	}

	s.calling.Store(true)
	defer s.calling.Store(false)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("view listener panicked", zap.Any("panic", r))
		}
	}()
	s.fn(v)
}
