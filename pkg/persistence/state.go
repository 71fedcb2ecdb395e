package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/matchmore/alps-go/pkg/kvstore"
	"github.com/matchmore/alps-go/pkg/metrics"
	"github.com/matchmore/alps-go/pkg/model"
)

// StateVersion is the current version of the state document format.
const StateVersion = 1

// ErrCorrupt reports a stored document that could not be decoded. Open
// recovers from it by starting empty.
var ErrCorrupt = errors.New("corrupt state document")

// State is the persisted document.
type State struct {
	// Version is the document format version.
	Version int `json:"version"`

	// SavedAt is when the document was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Device is the main device.
	Device *model.Device `json:"device,omitempty"`

	// Pins are the pin devices created by this client.
	Pins []model.Device `json:"pins,omitempty"`

	// Subscriptions are the subscriptions created by this client. Expired
	// entries are dropped by pruning.
	Subscriptions []model.Subscription `json:"subscriptions,omitempty"`

	// Publications are the publications created by this client. Expired
	// entries are dropped by pruning.
	Publications []model.Publication `json:"publications,omitempty"`
}

func (st State) clone() State {
	c := State{Version: st.Version, SavedAt: st.SavedAt}
	if st.Device != nil {
		d := st.Device.Clone()
		c.Device = &d
	}
	for _, d := range st.Pins {
		c.Pins = append(c.Pins, d.Clone())
	}
	for _, sub := range st.Subscriptions {
		c.Subscriptions = append(c.Subscriptions, sub.Clone())
	}
	for _, pub := range st.Publications {
		c.Publications = append(c.Publications, pub.Clone())
	}
	return c
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the clock used for pruning and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.timeNow = now }
}

// WithMetrics records pruned entries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store owns the state document. Every mutation is applied and persisted
// under one mutex; a failed save rolls the in-memory state back.
type Store struct {
	mu        sync.Mutex
	kv        kvstore.Store
	namespace string
	state     State
	recovered bool

	logger  *slog.Logger
	metrics *metrics.Metrics
	timeNow func() time.Time
}

// Open loads the document stored under namespace. A missing document
// yields empty state. A corrupt one yields empty state, a warning, and
// Recovered() == true. Storage errors are returned.
func Open(ctx context.Context, kv kvstore.Store, namespace string, opts ...Option) (*Store, error) {
	s := &Store{
		kv:        kv,
		namespace: namespace,
		timeNow:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := kv.Load(ctx, namespace)
	if errors.Is(err, kvstore.ErrNotFound) {
		s.state = State{Version: StateVersion}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", namespace, err)
	}

	st, err := decode(data)
	if err != nil {
		s.warnLog("discarding persisted state", "namespace", namespace, "error", err)
		s.state = State{Version: StateVersion}
		s.recovered = true
		return s, nil
	}
	s.state = st
	return s, nil
}

func decode(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if st.Version < 1 || st.Version > StateVersion {
		return State{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, st.Version)
	}
	return st, nil
}

// Recovered reports whether Open discarded a corrupt document.
func (s *Store) Recovered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovered
}

// Namespace returns the key the document is stored under.
func (s *Store) Namespace() string {
	return s.namespace
}

// SetDevice records the main device.
func (s *Store) SetDevice(ctx context.Context, d model.Device) error {
	if !d.Assigned() {
		return fmt.Errorf("%w: device has no id", model.ErrValidation)
	}
	return s.mutate(ctx, func(st *State) {
		c := d.Clone()
		st.Device = &c
	})
}

// AddPinDevice records a pin device, replacing one with the same ID.
func (s *Store) AddPinDevice(ctx context.Context, d model.Device) error {
	if !d.Assigned() {
		return fmt.Errorf("%w: device has no id", model.ErrValidation)
	}
	if d.Kind != model.KindPin {
		return fmt.Errorf("%w: %s is not a pin device", model.ErrValidation, d.Kind)
	}
	return s.mutate(ctx, func(st *State) {
		for i := range st.Pins {
			if st.Pins[i].ID == d.ID {
				st.Pins[i] = d.Clone()
				return
			}
		}
		st.Pins = append(st.Pins, d.Clone())
	})
}

// AddSubscription records a subscription, replacing one with the same ID.
// A zero CreatedAt is stamped with the store clock.
func (s *Store) AddSubscription(ctx context.Context, sub model.Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("%w: subscription has no id", model.ErrValidation)
	}
	sub = sub.Clone()
	if sub.CreatedAt == 0 {
		sub.CreatedAt = s.timeNow().UnixMilli()
	}
	return s.mutate(ctx, func(st *State) {
		for i := range st.Subscriptions {
			if st.Subscriptions[i].ID == sub.ID {
				st.Subscriptions[i] = sub
				return
			}
		}
		st.Subscriptions = append(st.Subscriptions, sub)
	})
}

// AddPublication records a publication, replacing one with the same ID.
// A zero CreatedAt is stamped with the store clock.
func (s *Store) AddPublication(ctx context.Context, pub model.Publication) error {
	if pub.ID == "" {
		return fmt.Errorf("%w: publication has no id", model.ErrValidation)
	}
	pub = pub.Clone()
	if pub.CreatedAt == 0 {
		pub.CreatedAt = s.timeNow().UnixMilli()
	}
	return s.mutate(ctx, func(st *State) {
		for i := range st.Publications {
			if st.Publications[i].ID == pub.ID {
				st.Publications[i] = pub
				return
			}
		}
		st.Publications = append(st.Publications, pub)
	})
}

// PruneExpired removes subscriptions and publications expired at now and
// persists if anything was removed. It returns the number removed.
func (s *Store) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(ctx, now)
}

func (s *Store) pruneLocked(ctx context.Context, now time.Time) (int, error) {
	prev := s.state.clone()

	subs := s.state.Subscriptions[:0]
	for _, sub := range s.state.Subscriptions {
		if !sub.Expired(now) {
			subs = append(subs, sub)
		}
	}
	pubs := s.state.Publications[:0]
	for _, pub := range s.state.Publications {
		if !pub.Expired(now) {
			pubs = append(pubs, pub)
		}
	}

	removed := len(prev.Subscriptions) - len(subs) + len(prev.Publications) - len(pubs)
	if removed == 0 {
		return 0, nil
	}
	s.state.Subscriptions = subs
	s.state.Publications = pubs

	if err := s.saveLocked(ctx); err != nil {
		s.state = prev
		return 0, err
	}
	s.metrics.AddStorePruned(removed)
	s.debugLog("pruned expired entries", "removed", removed)
	return removed, nil
}

// ActiveSubscriptions prunes and returns a copy of the live subscriptions.
// If persisting the prune fails, expired entries are still left out.
func (s *Store) ActiveSubscriptions(ctx context.Context) []model.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeNow()
	if _, err := s.pruneLocked(ctx, now); err != nil {
		s.warnLog("prune before read failed", "error", err)
	}
	out := make([]model.Subscription, 0, len(s.state.Subscriptions))
	for _, sub := range s.state.Subscriptions {
		if !sub.Expired(now) {
			out = append(out, sub.Clone())
		}
	}
	return out
}

// ActivePublications prunes and returns a copy of the live publications.
func (s *Store) ActivePublications(ctx context.Context) []model.Publication {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeNow()
	if _, err := s.pruneLocked(ctx, now); err != nil {
		s.warnLog("prune before read failed", "error", err)
	}
	out := make([]model.Publication, 0, len(s.state.Publications))
	for _, pub := range s.state.Publications {
		if !pub.Expired(now) {
			out = append(out, pub.Clone())
		}
	}
	return out
}

// Device returns the main device.
func (s *Store) Device() (model.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Device == nil {
		return model.Device{}, false
	}
	return s.state.Device.Clone(), true
}

// Pins returns copies of the pin devices.
func (s *Store) Pins() []model.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Device, 0, len(s.state.Pins))
	for _, d := range s.state.Pins {
		out = append(out, d.Clone())
	}
	return out
}

// FindDevice looks up id among the main device and the pin devices.
func (s *Store) FindDevice(id string) (model.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Device != nil && s.state.Device.ID == id {
		return s.state.Device.Clone(), true
	}
	for _, d := range s.state.Pins {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return model.Device{}, false
}

// Wipe clears all state, the main device included, and deletes the
// stored document.
func (s *Store) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.namespace); err != nil {
		return fmt.Errorf("delete state %s: %w", s.namespace, err)
	}
	s.state = State{Version: StateVersion}
	s.recovered = false
	return nil
}

// Snapshot returns a copy of the whole document.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) mutate(ctx context.Context, fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.clone()
	fn(&s.state)
	if err := s.saveLocked(ctx); err != nil {
		s.state = prev
		return err
	}
	return nil
}

func (s *Store) saveLocked(ctx context.Context) error {
	s.state.Version = StateVersion
	s.state.SavedAt = s.timeNow()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.kv.Save(ctx, s.namespace, data); err != nil {
		return fmt.Errorf("save state %s: %w", s.namespace, err)
	}
	return nil
}

func (s *Store) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) warnLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
