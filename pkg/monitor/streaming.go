package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/matchmore/alps-go/pkg/connection"
	"github.com/matchmore/alps-go/pkg/log"
	"github.com/matchmore/alps-go/pkg/metrics"
	"github.com/matchmore/alps-go/pkg/model"
	"github.com/matchmore/alps-go/pkg/scheduler"
	"github.com/matchmore/alps-go/pkg/stream"
)

// ConnState is the connection state of a StreamingMonitor.
type ConnState uint8

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnClosing
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "DISCONNECTED"
	case ConnConnecting:
		return "CONNECTING"
	case ConnConnected:
		return "CONNECTED"
	case ConnClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// StreamingConfig configures a StreamingMonitor.
type StreamingConfig struct {
	// DeviceID is the monitored device. Required.
	DeviceID string

	// URL is the stream endpoint of the device. Required.
	URL string

	// Credential authenticates the stream.
	Credential stream.Credential

	// Dialer opens the stream. Required.
	Dialer stream.Dialer

	// Resolver turns pushed identifiers into matches. Required.
	Resolver MatchResolver

	// Scheduler runs the receive loop. Required.
	Scheduler *scheduler.Scheduler

	// Reconnect redials after the stream drops. When false the monitor
	// stops itself after the first drop.
	Reconnect bool

	// Backoff paces redials.
	Backoff connection.BackoffConfig

	// OnRemove is invoked once when the monitor stops.
	OnRemove RemoveFunc

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// EventLogger captures frames, deliveries, failures and state changes.
	EventLogger log.Logger

	// Metrics counts deliveries, failures and redials. May be nil.
	Metrics *metrics.Metrics
}

// StreamingMonitor listens on a push stream. Every pushed identifier is
// resolved with a lookup and delivered once as a single-match batch.
//
// The seen set only grows, and it survives redials, so an identifier is
// delivered at most once per monitor.
type StreamingMonitor struct {
	*base

	url       string
	cred      stream.Credential
	dialer    stream.Dialer
	resolver  MatchResolver
	scheduler *scheduler.Scheduler
	reconnect bool
	backoff   connection.BackoffConfig

	stateMu sync.Mutex
	state   ConnState
	started bool
	task    *scheduler.Task
	connID  string

	seenMu sync.Mutex
	seen   model.MatchSet

	lookups sync.WaitGroup
	group   singleflight.Group
}

// NewStreamingMonitor creates a disconnected streaming monitor.
func NewStreamingMonitor(cfg StreamingConfig) (*StreamingMonitor, error) {
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id is empty", model.ErrValidation)
	}
	if cfg.URL == "" || cfg.Dialer == nil || cfg.Resolver == nil || cfg.Scheduler == nil {
		return nil, fmt.Errorf("monitor: url, dialer, resolver and scheduler are required")
	}

	m := &StreamingMonitor{
		url:       cfg.URL,
		cred:      cfg.Credential,
		dialer:    cfg.Dialer,
		resolver:  cfg.Resolver,
		scheduler: cfg.Scheduler,
		reconnect: cfg.Reconnect,
		backoff:   cfg.Backoff,
		seen:      model.NewMatchSet(nil),
	}
	m.base = newBase(cfg.DeviceID, ChannelWebsocket, cfg.OnRemove, cfg.Logger, cfg.EventLogger, cfg.Metrics)
	m.connID = m.id
	return m, nil
}

// StreamTaskName returns the scheduler task name used for deviceID.
func StreamTaskName(deviceID string) string {
	return "stream/" + deviceID
}

// State returns the connection state.
func (m *StreamingMonitor) State() ConnState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

// Start launches the receive loop.
func (m *StreamingMonitor) Start() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.Stopped() {
		return ErrStopped
	}
	if m.started {
		return nil
	}

	task, err := m.scheduler.RunOnce(StreamTaskName(m.deviceID), m.run)
	if err != nil {
		return fmt.Errorf("start stream %s: %w", m.deviceID, err)
	}
	m.task = task
	m.started = true
	return nil
}

// Stop closes the stream, cancels pending lookups and waits for them.
// Called while a match is being delivered, it cancels without waiting.
func (m *StreamingMonitor) Stop() {
	m.stop(m, func(wait bool) {
		m.stateMu.Lock()
		task := m.task
		m.stateMu.Unlock()

		if !wait {
			if task != nil {
				task.Abort()
			}
			return
		}
		if task != nil {
			task.Cancel()
		}
		m.lookups.Wait()
	})
}

func (m *StreamingMonitor) setState(s ConnState, reason string) {
	m.stateMu.Lock()
	old := m.state
	m.state = s
	connID := m.connID
	m.stateMu.Unlock()

	if old != s {
		m.stateChange(connID, log.StateEntityConnection, old.String(), s.String(), reason)
	}
}

func (m *StreamingMonitor) setConnID(id string) {
	m.stateMu.Lock()
	m.connID = id
	m.stateMu.Unlock()
}

// run dials, receives until the stream drops, and redials per policy.
func (m *StreamingMonitor) run(ctx context.Context) {
	backoff := connection.NewBackoffWithConfig(m.backoff)

	for {
		m.setState(ConnConnecting, "")
		conn, err := m.dialer.Dial(ctx, m.url, m.cred)
		if err != nil {
			m.setState(ConnDisconnected, err.Error())
			if ctx.Err() != nil {
				return
			}
			m.fail(m.id, metrics.ReasonConnect, err)
		} else {
			backoff.Reset()
			m.setConnID(conn.ID())
			m.setState(ConnConnected, "")

			reason, err := m.receive(ctx, conn)

			m.setState(ConnClosing, "")
			conn.Close()
			m.setState(ConnDisconnected, errString(err))
			if ctx.Err() != nil {
				return
			}
			m.fail(conn.ID(), reason, err)
			m.setConnID(m.id)
		}

		if !m.reconnect {
			m.debugLog("stream dropped, reconnect disabled")
			// Stop waits for this task, so it must not run on it.
			go m.Stop()
			return
		}
		m.metrics.IncStreamReconnects()
		if err := backoff.Wait(ctx); err != nil {
			return
		}
	}
}

// receive handles frames until the stream fails. It returns the failure
// reason label and the error.
func (m *StreamingMonitor) receive(ctx context.Context, conn stream.Conn) (string, error) {
	for {
		f, err := conn.Receive(ctx)
		if err != nil {
			return metrics.ReasonReceive, err
		}

		switch f.Kind {
		case stream.FramePing:
			m.logControl(conn.ID(), log.DirectionIn, log.ControlMsgPing)
			if err := conn.Send(ctx, stream.PongText); err != nil {
				return metrics.ReasonSend, err
			}
			m.logControl(conn.ID(), log.DirectionOut, log.ControlMsgPong)
		case stream.FramePong:
			m.logControl(conn.ID(), log.DirectionIn, log.ControlMsgPong)
		case stream.FrameData:
			if f.Data == "" {
				continue
			}
			m.events.Log(log.Event{
				Timestamp:    m.timeNow(),
				ConnectionID: conn.ID(),
				Direction:    log.DirectionIn,
				Layer:        log.LayerTransport,
				Category:     log.CategoryFrame,
				Channel:      m.channel.String(),
				DeviceID:     m.deviceID,
				Frame:        &log.FrameEvent{Size: len(f.Data), Data: f.Data},
			})
			m.resolve(ctx, conn.ID(), f.Data)
		}
	}
}

// resolve looks matchID up in the background. Concurrent lookups of one
// identifier share a single request.
func (m *StreamingMonitor) resolve(ctx context.Context, connID, matchID string) {
	m.seenMu.Lock()
	_, known := m.seen[matchID]
	m.seenMu.Unlock()
	if known {
		return
	}

	m.lookups.Add(1)
	go func() {
		defer m.lookups.Done()

		v, err, _ := m.group.Do(matchID, func() (any, error) {
			return m.resolver.GetMatch(ctx, m.deviceID, matchID)
		})
		if err != nil {
			if ctx.Err() == nil {
				m.fail(connID, metrics.ReasonLookup, err)
			}
			return
		}

		match := v.(model.Match)
		if match.ID == "" {
			match.ID = matchID
		}

		m.seenMu.Lock()
		fresh := m.seen.Add(match)
		m.seenMu.Unlock()
		if fresh {
			m.deliver(connID, []model.Match{match})
		}
	}()
}

func (m *StreamingMonitor) logControl(connID string, dir log.Direction, typ log.ControlMsgType) {
	m.events.Log(log.Event{
		Timestamp:    m.timeNow(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		Channel:      m.channel.String(),
		DeviceID:     m.deviceID,
		ControlMsg:   &log.ControlMsgEvent{Type: typ},
	})
}

func errString(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return ""
	}
	return err.Error()
}

var _ Monitor = (*StreamingMonitor)(nil)
