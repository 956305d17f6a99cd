package authsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	identity  *authdomain.Identity
	err       error
	gate      chan struct{}
	reads     int
	listeners map[int]func(*authdomain.Identity)
	nextID    int
}

func newFakeProvider(identity *authdomain.Identity) *fakeProvider {
	return &fakeProvider{identity: identity, listeners: map[int]func(*authdomain.Identity){}}
}

func (p *fakeProvider) CurrentSession(ctx context.Context) (*authdomain.Identity, error) {
	p.mu.Lock()
	p.reads++
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity, p.err
}

func (p *fakeProvider) OnSessionChange(fn func(*authdomain.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// emit stores identity as the current session and notifies listeners.
func (p *fakeProvider) emit(identity *authdomain.Identity) {
	p.mu.Lock()
	p.identity = identity
	fns := make([]func(*authdomain.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (p *fakeProvider) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*profiledomain.Profile
	errs     map[string]error
	gates    map[string]chan struct{}
	calls    map[string]int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: map[string]*profiledomain.Profile{},
		errs:     map[string]error{},
		gates:    map[string]chan struct{}{},
		calls:    map[string]int{},
	}
}

func (f *fakeProfiles) FindProfileByIdentity(ctx context.Context, identityID string) (*profiledomain.Profile, error) {
	f.mu.Lock()
	f.calls[identityID]++
	gate := f.gates[identityID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[identityID]; err != nil {
		return nil, err
	}
	return f.profiles[identityID], nil
}

func (f *fakeProfiles) set(p *profiledomain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.IdentityID] = p
}

// hold makes lookups for identityID block until the returned func is called.
func (f *fakeProfiles) hold(identityID string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[identityID] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeProfiles) callCount(identityID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[identityID]
}

type reported struct {
	err  error
	tags map[string]string
}

type fakeSink struct {
	mu      sync.Mutex
	reports []reported
}

func (s *fakeSink) Report(_ context.Context, err error, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, reported{err: err, tags: tags})
}

func (s *fakeSink) all() []reported {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reported(nil), s.reports...)
}

func (s *fakeSink) has(target error) bool {
	for _, r := range s.all() {
		if errors.Is(r.err, target) {
			return true
		}
	}
	return false
}

type viewRecorder struct {
	mu    sync.Mutex
	views []View
}

func (r *viewRecorder) record(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *viewRecorder) all() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

func (r *viewRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

var epoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func identity(id string) *authdomain.Identity {
	return &authdomain.Identity{
		ID:        id,
		Email:     id + "@example.com",
		SessionID: "sess-" + id,
		IssuedAt:  epoch,
		ExpiresAt: epoch.Add(24 * time.Hour),
	}
}

func profile(identityID string, role profiledomain.Role) *profiledomain.Profile {
	return &profiledomain.Profile{
		ID:          1,
		IdentityID:  identityID,
		Handle:      identityID,
		DisplayName: identityID,
		Role:        role,
		CreatedAt:   epoch,
		UpdatedAt:   epoch,
	}
}

func waitForView(t *testing.T, c *Controller, desc string, pred func(View) bool) View {
	t.Helper()
	require.Eventually(t, func() bool { return pred(c.View()) }, 2*time.Second, 5*time.Millisecond, desc)
	return c.View()
}

func isReady(v View) bool { return v.Status == StatusReady }
