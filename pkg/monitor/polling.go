package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/matchmore/alps-go/pkg/log"
	"github.com/matchmore/alps-go/pkg/metrics"
	"github.com/matchmore/alps-go/pkg/model"
	"github.com/matchmore/alps-go/pkg/scheduler"
)

// DefaultPollInterval is the polling cadence when none is configured.
const DefaultPollInterval = 3 * time.Second

// PollState is the lifecycle state of a PollingMonitor.
type PollState uint8

const (
	PollIdle PollState = iota
	PollPolling
	PollStopped
)

// String returns the state name.
func (s PollState) String() string {
	switch s {
	case PollIdle:
		return "IDLE"
	case PollPolling:
		return "POLLING"
	case PollStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// PollingConfig configures a PollingMonitor.
type PollingConfig struct {
	// DeviceID is the monitored device. Required.
	DeviceID string

	// Lister queries the match list. Required.
	Lister MatchLister

	// Scheduler runs the poll task. Required.
	Scheduler *scheduler.Scheduler

	// Interval is the poll cadence. Zero uses DefaultPollInterval.
	Interval time.Duration

	// OnRemove is invoked once when the monitor stops.
	OnRemove RemoveFunc

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// EventLogger captures deliveries, failures and state changes.
	EventLogger log.Logger

	// Metrics counts deliveries and failures. May be nil.
	Metrics *metrics.Metrics
}

// PollingMonitor queries the match list on a fixed cadence and delivers
// the matches not present in the previous response.
//
// The previous response replaces the seen set on every successful poll,
// so a match that leaves the list and later returns is delivered again.
type PollingMonitor struct {
	*base

	lister    MatchLister
	scheduler *scheduler.Scheduler
	interval  time.Duration

	stateMu sync.Mutex
	state   PollState
	task    *scheduler.Task

	// seen is only touched by the poll task.
	seen model.MatchSet
}

// NewPollingMonitor creates an idle polling monitor.
func NewPollingMonitor(cfg PollingConfig) (*PollingMonitor, error) {
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id is empty", model.ErrValidation)
	}
	if cfg.Lister == nil || cfg.Scheduler == nil {
		return nil, fmt.Errorf("monitor: lister and scheduler are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}

	m := &PollingMonitor{
		lister:    cfg.Lister,
		scheduler: cfg.Scheduler,
		interval:  cfg.Interval,
		seen:      model.NewMatchSet(nil),
	}
	m.base = newBase(cfg.DeviceID, ChannelPolling, cfg.OnRemove, cfg.Logger, cfg.EventLogger, cfg.Metrics)
	return m, nil
}

// PollTaskName returns the scheduler task name used for deviceID.
func PollTaskName(deviceID string) string {
	return "poll/" + deviceID
}

// State returns the lifecycle state.
func (m *PollingMonitor) State() PollState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

// Start schedules the poll task. The first poll runs immediately.
func (m *PollingMonitor) Start() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	switch m.state {
	case PollPolling:
		return nil
	case PollStopped:
		return ErrStopped
	}

	task, err := m.scheduler.RunPeriodic(PollTaskName(m.deviceID), m.interval, m.poll)
	if err != nil {
		return fmt.Errorf("start polling %s: %w", m.deviceID, err)
	}
	m.task = task
	m.setStateLocked(PollPolling, "")
	return nil
}

// Stop cancels the poll task and waits for an in-flight poll. Called
// while a batch is being delivered, it cancels without waiting.
func (m *PollingMonitor) Stop() {
	m.stop(m, func(wait bool) {
		m.stateMu.Lock()
		task := m.task
		m.setStateLocked(PollStopped, "stopped")
		m.stateMu.Unlock()

		switch {
		case task == nil:
		case wait:
			task.Cancel()
		default:
			task.Abort()
		}
	})
}

func (m *PollingMonitor) setStateLocked(s PollState, reason string) {
	if m.state == s {
		return
	}
	old := m.state
	m.state = s
	m.stateChange(m.id, log.StateEntityMonitor, old.String(), s.String(), reason)
}

func (m *PollingMonitor) poll(ctx context.Context) {
	matches, err := m.lister.GetMatches(ctx, m.deviceID)
	if err != nil {
		if ctx.Err() == nil {
			m.fail(m.id, metrics.ReasonRequest, err)
		}
		return
	}

	fresh := model.NewMatches(m.seen, matches)
	m.seen = model.NewMatchSet(matches)

	m.deliver(m.id, fresh)
}

var _ Monitor = (*PollingMonitor)(nil)
