package session

import (
	"context"
	"sync"

	"github.com/smallbiznis/talentbay/internal/auth/domain"
)

const seenEventsCap = 128

// Provider is the domain.SessionProvider of a single device. It delivers
// each event at most once even when it arrives both locally and through
// pub/sub.
type Provider struct {
	store    *Store
	deviceID string

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

var _ domain.SessionProvider = (*Provider)(nil)

func newProvider(store *Store, deviceID string) *Provider {
	return &Provider{
		store:    store,
		deviceID: deviceID,
		seen:     make(map[string]struct{}, seenEventsCap),
		order:    make([]string, 0, seenEventsCap),
	}
}

func (p *Provider) DeviceID() string {
	return p.deviceID
}

func (p *Provider) CurrentSession(ctx context.Context) (*domain.Identity, error) {
	return p.store.Get(ctx, p.deviceID)
}

func (p *Provider) OnSessionChange(fn func(*domain.Identity)) func() {
	return p.store.Watch(p.deviceID, func(ev Event) {
		if !p.firstSight(ev.ID) {
			return
		}
		fn(ev.Identity)
	})
}

func (p *Provider) firstSight(eventID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[eventID]; ok {
		return false
	}
	if len(p.order) == seenEventsCap {
		delete(p.seen, p.order[0])
		p.order = p.order[1:]
	}
	p.seen[eventID] = struct{}{}
	p.order = append(p.order, eventID)
	return true
}
