package authsession

import (
	"context"
	"strings"
	"sync"
	"time"

	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/smallbiznis/talentbay/internal/observability/errorsink"
	"github.com/smallbiznis/talentbay/pkg/telemetry"
	"go.uber.org/zap"
)

const (
	defaultIdleTTL       = 15 * time.Minute
	defaultSweepInterval = time.Minute
)

// ProviderFactory returns the session provider of one device.
type ProviderFactory func(deviceID string) authdomain.SessionProvider

type entry struct {
	ctrl     *Controller
	refs     int
	lastUsed time.Time
}

// Registry owns one Controller per device. Controllers are created on first
// use and closed once they have been unused for the idle TTL.
type Registry struct {
	providers ProviderFactory
	profiles  ProfileFinder
	clock     clock.Clock
	log       *zap.Logger
	sink      errorsink.Sink
	metrics   *telemetry.Metrics
	idleTTL   time.Duration
	sweep     time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	stop chan struct{}
	done chan struct{}
}

type RegistryConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

func NewRegistry(providers ProviderFactory, profiles ProfileFinder, clk clock.Clock, log *zap.Logger, sink errorsink.Sink, metrics *telemetry.Metrics, cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		providers: providers,
		profiles:  profiles,
		clock:     clk,
		log:       log.Named("authsession"),
		sink:      sink,
		metrics:   metrics,
		idleTTL:   cfg.IdleTTL,
		sweep:     cfg.SweepInterval,
		entries:   make(map[string]*entry),
	}
}

// Acquire returns the controller of deviceID and a release func that must be
// called once the caller is done with it.
func (r *Registry) Acquire(deviceID string) (*Controller, func(), error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, nil, authdomain.ErrInvalidDevice
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, ErrClosed
	}

	e, ok := r.entries[deviceID]
	if !ok || e.ctrl.Closed() {
		ctrl := New(r.providers(deviceID), r.profiles,
			WithLogger(r.log.With(zap.String("device_id", deviceID))),
			WithErrorSink(r.sink),
			WithClock(r.clock),
			WithMetrics(r.metrics),
		)
		e = &entry{ctrl: ctrl}
		r.entries[deviceID] = e
		r.metrics.SetLiveControllers(len(r.entries))
	}
	e.refs++
	e.lastUsed = r.clock.Now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			e.refs--
			e.lastUsed = r.clock.Now()
		})
	}
	return e.ctrl, release, nil
}

// Sweep closes controllers that nobody holds and that have been idle for at
// least the idle TTL. It returns how many were closed.
func (r *Registry) Sweep() int {
	now := r.clock.Now()

	r.mu.Lock()
	var idle []*Controller
	for id, e := range r.entries {
		if e.refs > 0 || now.Sub(e.lastUsed) < r.idleTTL {
			continue
		}
		idle = append(idle, e.ctrl)
		delete(r.entries, id)
	}
	live := len(r.entries)
	r.mu.Unlock()

	for _, ctrl := range idle {
		ctrl.Close()
	}
	if len(idle) > 0 {
		r.metrics.SetLiveControllers(live)
		r.log.Debug("closed idle controllers", zap.Int("closed", len(idle)), zap.Int("live", live))
	}
	return len(idle)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Start runs the idle sweep in the background until Stop.
func (r *Registry) Start(context.Context) error {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
	return nil
}

// Stop ends the sweep and closes every controller.
func (r *Registry) Stop(ctx context.Context) error {
	if r.stop != nil {
		close(r.stop)
		select {
		case <-r.done:
		case <-ctx.Done():
		}
		r.stop = nil
	}
	r.Close()
	return nil
}

func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.ctrl.Close()
	}
	r.metrics.SetLiveControllers(0)
}
