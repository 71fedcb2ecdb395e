package session

import (
	"context"
	"fmt"

	"github.com/matchmore/alps-go/pkg/model"
	"github.com/matchmore/alps-go/pkg/monitor"
	"github.com/matchmore/alps-go/pkg/stream"
)

// SubscribeMatches starts delivering matches of deviceID, or of the main
// device when deviceID is empty, over channel. A monitor already
// installed for the device is stopped before the new one starts.
//
// The returned monitor delivers to every handler registered with OnMatch
// and to callbacks subscribed on it directly. A handler may call
// SubscribeMatches for the device it is receiving matches of.
func (s *Session) SubscribeMatches(ctx context.Context, channel monitor.Channel, deviceID string) (monitor.Monitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	id, err := s.resolveDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if deviceID != "" {
		if _, ok := s.store.FindDevice(deviceID); !ok {
			return nil, fmt.Errorf("%w: unknown device %q", ErrNoDevice, deviceID)
		}
	}

	m, err := s.newMonitor(channel, id)
	if err != nil {
		return nil, err
	}
	m.Subscribe(func(batch []model.Match) {
		s.dispatch(id, batch)
	})

	s.installMu.Lock()
	defer s.installMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	old := s.monitors[id]
	delete(s.monitors, id)
	s.mu.Unlock()

	if old != nil {
		s.debugLog("replacing monitor", "device_id", id, "old_channel", old.Channel().String())
		old.Stop()
	}

	s.mu.Lock()
	s.monitors[id] = m
	n := len(s.monitors)
	s.mu.Unlock()
	s.metrics.SetActiveMonitors(n)

	if err := m.Start(); err != nil {
		m.Stop()
		return nil, err
	}
	s.debugLog("monitor started", "device_id", id, "channel", channel.String())
	return m, nil
}

func (s *Session) newMonitor(channel monitor.Channel, deviceID string) (monitor.Monitor, error) {
	switch channel {
	case monitor.ChannelPolling:
		m, err := monitor.NewPollingMonitor(monitor.PollingConfig{
			DeviceID:    deviceID,
			Lister:      s.backend,
			Scheduler:   s.sched,
			Interval:    s.cfg.PollInterval,
			OnRemove:    s.removeMonitor,
			Logger:      s.logger,
			EventLogger: s.events,
			Metrics:     s.metrics,
		})
		if err != nil {
			return nil, err
		}
		return m, nil

	case monitor.ChannelWebsocket:
		worldID, err := s.cfg.ResolveWorldID()
		if err != nil {
			return nil, err
		}
		m, err := monitor.NewStreamingMonitor(monitor.StreamingConfig{
			DeviceID:    deviceID,
			URL:         s.cfg.PusherURL(deviceID),
			Credential:  stream.Credential{WorldID: worldID},
			Dialer:      s.dialer,
			Resolver:    s.backend,
			Scheduler:   s.sched,
			Reconnect:   s.cfg.Reconnect,
			Backoff:     s.cfg.ReconnectBackoff,
			OnRemove:    s.removeMonitor,
			Logger:      s.logger,
			EventLogger: s.events,
			Metrics:     s.metrics,
		})
		if err != nil {
			return nil, err
		}
		return m, nil

	default:
		return nil, fmt.Errorf("%w %q", monitor.ErrUnknownChannel, channel.String())
	}
}

// removeMonitor drops m from the registry unless it was already replaced.
func (s *Session) removeMonitor(deviceID string, m monitor.Monitor) {
	s.mu.Lock()
	if cur, ok := s.monitors[deviceID]; ok && cur == m {
		delete(s.monitors, deviceID)
	}
	n := len(s.monitors)
	s.mu.Unlock()
	s.metrics.SetActiveMonitors(n)
}

func (s *Session) dispatch(deviceID string, batch []model.Match) {
	s.dispatching.Add(1)
	defer s.dispatching.Add(-1)

	s.mu.Lock()
	handlers := make([]MatchHandler, len(s.handlers))
	for i, h := range s.handlers {
		handlers[i] = h.fn
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(deviceID, batch)
	}
}

// OnMatch registers h for batches of every current and future monitor.
func (s *Session) OnMatch(h MatchHandler) HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandler++
	s.handlers = append(s.handlers, handlerEntry{id: s.nextHandler, fn: h})
	return s.nextHandler
}

// RemoveMatchHandler unregisters a handler and reports whether it was
// registered.
func (s *Session) RemoveMatchHandler(id HandlerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Monitors returns a copy of the registry keyed by device ID.
func (s *Session) Monitors() map[string]monitor.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]monitor.Monitor, len(s.monitors))
	for id, m := range s.monitors {
		out[id] = m
	}
	return out
}

// Monitor returns the monitor installed for deviceID.
func (s *Session) Monitor(deviceID string) (monitor.Monitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[deviceID]
	return m, ok
}
