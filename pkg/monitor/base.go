package monitor

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/matchmore/alps-go/pkg/log"
	"github.com/matchmore/alps-go/pkg/metrics"
	"github.com/matchmore/alps-go/pkg/model"
)

type registered struct {
	id CallbackID
	cb Callback
}

// base holds what both monitors share: the callback list, delivery
// serialization and failure accounting.
type base struct {
	id       string
	deviceID string
	channel  Channel

	mu        sync.Mutex
	callbacks []registered
	nextID    CallbackID

	// deliverMu serializes dispatches. dispatching counts the ones that
	// are running callbacks.
	deliverMu   sync.Mutex
	dispatching atomic.Int32
	closed      atomic.Bool

	stopOnce sync.Once
	onRemove RemoveFunc

	logger  *slog.Logger
	events  log.Logger
	metrics *metrics.Metrics
	timeNow func() time.Time
}

func newBase(deviceID string, channel Channel, onRemove RemoveFunc, logger *slog.Logger, events log.Logger, m *metrics.Metrics) *base {
	return &base{
		id:       uuid.NewString(),
		deviceID: deviceID,
		channel:  channel,
		onRemove: onRemove,
		logger:   logger,
		events:   log.OrNoop(events),
		metrics:  m,
		timeNow:  time.Now,
	}
}

func (b *base) DeviceID() string { return b.deviceID }

func (b *base) Channel() Channel { return b.channel }

func (b *base) Stopped() bool { return b.closed.Load() }

func (b *base) Subscribe(cb Callback) CallbackID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.callbacks = append(b.callbacks, registered{id: b.nextID, cb: cb})
	return b.nextID
}

func (b *base) Unsubscribe(id CallbackID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.callbacks {
		if r.id == id {
			b.callbacks = append(b.callbacks[:i:i], b.callbacks[i+1:]...)
			return true
		}
	}
	return false
}

// deliver hands batch to a snapshot of the callbacks. It reports false if
// the monitor was stopped first.
func (b *base) deliver(connID string, batch []model.Match) bool {
	if len(batch) == 0 {
		return false
	}

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.dispatching.Add(1)
	defer b.dispatching.Add(-1)
	if b.closed.Load() {
		return false
	}

	b.mu.Lock()
	cbs := make([]Callback, len(b.callbacks))
	for i, r := range b.callbacks {
		cbs[i] = r.cb
	}
	b.mu.Unlock()

	now := b.timeNow()
	for _, m := range batch {
		b.events.Log(log.Event{
			Timestamp:    now,
			ConnectionID: connID,
			Layer:        log.LayerMonitor,
			Category:     log.CategoryMatch,
			Channel:      b.channel.String(),
			DeviceID:     b.deviceID,
			Match: &log.MatchEvent{
				MatchID:        m.ID,
				SubscriptionID: m.Subscription.ID,
				PublicationID:  m.Publication.ID,
				BatchSize:      len(batch),
			},
		})
	}
	b.metrics.AddMatchesDelivered(b.channel.String(), len(batch))
	b.debugLog("delivering matches", "count", len(batch), "callbacks", len(cbs))

	for _, cb := range cbs {
		// A callback may have stopped the monitor.
		if b.closed.Load() {
			break
		}
		cb(batch)
	}
	return true
}

// close blocks new callbacks. It reports whether the caller may wait for
// the monitor's goroutines: that is not the case while a dispatch runs,
// since the caller may be one of its callbacks.
func (b *base) close() bool {
	b.closed.Store(true)
	return b.dispatching.Load() == 0
}

// stop runs halt once, then notifies the owner. halt must not block on
// the monitor's goroutines when wait is false.
func (b *base) stop(self Monitor, halt func(wait bool)) {
	b.stopOnce.Do(func() {
		wait := b.close()
		halt(wait)
		if b.onRemove != nil {
			b.onRemove(b.deviceID, self)
		}
		b.debugLog("monitor stopped")
	})
}

func (b *base) fail(connID, reason string, err error) {
	b.metrics.IncMonitorFailure(b.channel.String(), reason)
	b.events.Log(log.Event{
		Timestamp:    b.timeNow(),
		ConnectionID: connID,
		Layer:        log.LayerMonitor,
		Category:     log.CategoryError,
		Channel:      b.channel.String(),
		DeviceID:     b.deviceID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerMonitor,
			Message: err.Error(),
			Context: reason,
		},
	})
	if b.logger != nil {
		b.logger.Warn("monitor failure",
			"device_id", b.deviceID, "channel", b.channel.String(), "reason", reason, "error", err)
	}
}

func (b *base) stateChange(connID string, entity log.StateEntity, from, to, reason string) {
	b.events.Log(log.Event{
		Timestamp:    b.timeNow(),
		ConnectionID: connID,
		Layer:        log.LayerMonitor,
		Category:     log.CategoryState,
		Channel:      b.channel.String(),
		DeviceID:     b.deviceID,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
	b.debugLog("state change", "from", from, "to", to, "reason", reason)
}

func (b *base) debugLog(msg string, args ...any) {
	if b.logger != nil {
		args = append([]any{"device_id", b.deviceID, "channel", b.channel.String()}, args...)
		b.logger.Debug(msg, args...)
	}
}
