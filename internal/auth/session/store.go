package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/smallbiznis/talentbay/internal/observability/logger"
	"github.com/smallbiznis/talentbay/pkg/telemetry"
	"github.com/smallbiznis/talentbay/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const (
	keySession       = "session:%s"
	keyEvents        = "session:events:%s"
	keyEventsPattern = "session:events:*"
)

type record struct {
	Identity *domain.Identity `json:"identity"`
}

// Store keeps device sessions in Redis and fans session events out to local
// watchers and, through pub/sub, to every other instance.
type Store struct {
	rdb     *redis.Client
	log     *zap.Logger
	clock   clock.Clock
	metrics *telemetry.Metrics

	mu       sync.RWMutex
	watchers map[string]map[uint64]func(Event)
	nextID   uint64

	pubsub *redis.PubSub
	done   chan struct{}
}

func NewStore(rdb *redis.Client, log *zap.Logger, clk clock.Clock, metrics *telemetry.Metrics) *Store {
	return &Store{
		rdb:      rdb,
		log:      log.Named("session.store"),
		clock:    clk,
		metrics:  metrics,
		watchers: make(map[string]map[uint64]func(Event)),
	}
}

// Get returns the identity signed in on deviceID, or nil when there is none
// or it has expired.
func (s *Store) Get(ctx context.Context, deviceID string) (*domain.Identity, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(keySession, deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionRead, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %w", domain.ErrSessionRead, err)
	}
	if rec.Identity == nil || rec.Identity.Expired(s.clock.Now()) {
		return nil, nil
	}
	return rec.Identity, nil
}

func (s *Store) SignIn(ctx context.Context, deviceID string, identity *domain.Identity) error {
	if identity == nil {
		return errors.New("identity is required")
	}
	if err := s.write(ctx, deviceID, identity, false); err != nil {
		return err
	}
	s.publish(ctx, Event{Kind: EventSignedIn, DeviceID: deviceID, Identity: identity})
	return nil
}

func (s *Store) SignOut(ctx context.Context, deviceID string) error {
	if err := s.rdb.Del(ctx, fmt.Sprintf(keySession, deviceID)).Err(); err != nil {
		return err
	}
	s.publish(ctx, Event{Kind: EventSignedOut, DeviceID: deviceID})
	return nil
}

// Extend moves the expiry of the current session to expiresAt. It fails with
// domain.ErrSessionNotFound when the device is signed out.
func (s *Store) Extend(ctx context.Context, deviceID string, expiresAt time.Time) (*domain.Identity, error) {
	current, err := s.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrSessionNotFound
	}

	next := *current
	next.ExpiresAt = expiresAt
	if err := s.write(ctx, deviceID, &next, true); err != nil {
		return nil, err
	}
	s.publish(ctx, Event{Kind: EventRefreshed, DeviceID: deviceID, Identity: &next})
	return &next, nil
}

func (s *Store) write(ctx context.Context, deviceID string, identity *domain.Identity, mustExist bool) error {
	ttl := identity.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return errors.New("identity already expired")
	}
	payload, err := json.Marshal(record{Identity: identity})
	if err != nil {
		return err
	}

	key := fmt.Sprintf(keySession, deviceID)
	if !mustExist {
		return s.rdb.Set(ctx, key, payload, ttl).Err()
	}

	ok, err := s.rdb.SetXX(ctx, key, payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Watch registers fn for events of deviceID. Events published by this
// instance are delivered before the write returns; events from other
// instances arrive through pub/sub. The same event may be delivered twice.
func (s *Store) Watch(deviceID string, fn func(Event)) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	set, ok := s.watchers[deviceID]
	if !ok {
		set = make(map[uint64]func(Event))
		s.watchers[deviceID] = set
	}
	set[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers[deviceID], id)
			if len(s.watchers[deviceID]) == 0 {
				delete(s.watchers, deviceID)
			}
		})
	}
}

// Provider returns the session provider for one device.
func (s *Store) Provider(deviceID string) *Provider {
	return newProvider(s, deviceID)
}

func (s *Store) publish(ctx context.Context, ev Event) {
	ev.ID = ulid.Make().String()
	ev.Meta = correlation.NewMetadata(ctx)
	s.metrics.RecordSessionEvent(string(ev.Kind))

	s.dispatch(ev)

	payload, err := json.Marshal(ev)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("encode session event", zap.Error(err))
		return
	}
	if err := s.rdb.Publish(ctx, fmt.Sprintf(keyEvents, ev.DeviceID), payload).Err(); err != nil {
		logger.WithContext(ctx, s.log).Warn("publish session event",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

func (s *Store) dispatch(ev Event) {
	s.mu.RLock()
	set := s.watchers[ev.DeviceID]
	fns := make([]func(Event), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Start subscribes to session events from other instances.
func (s *Store) Start(ctx context.Context) error {
	pubsub := s.rdb.PSubscribe(ctx, keyEventsPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe session events: %w", err)
	}

	s.pubsub = pubsub
	s.done = make(chan struct{})
	go s.consume(pubsub.Channel())
	return nil
}

func (s *Store) consume(ch <-chan *redis.Message) {
	defer close(s.done)
	for msg := range ch {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			s.log.Warn("drop malformed session event", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		if ev.DeviceID == "" {
			ev.DeviceID = strings.TrimPrefix(msg.Channel, "session:events:")
		}
		ctx := correlation.ContextWithRemoteSpan(context.Background(), ev.Meta)
		logger.WithContext(ctx, s.log).Debug("session event received",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
		)
		s.dispatch(ev)
	}
}

// Stop closes the subscription and waits for the consumer to drain.
func (s *Store) Stop(context.Context) error {
	if s.pubsub == nil {
		return nil
	}
	err := s.pubsub.Close()
	<-s.done
	s.pubsub = nil
	return err
}
