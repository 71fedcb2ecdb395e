// Package metrics exposes prometheus counters for match delivery.
//
// Monitors never return errors once started, so failures surface here and
// in the event log. All methods are safe on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons used as the "reason" label of MonitorFailures.
const (
	ReasonRequest = "request"
	ReasonLookup  = "lookup"
	ReasonConnect = "connect"
	ReasonReceive = "receive"
	ReasonSend    = "send"
)

type Metrics struct {
	MonitorFailures  *prometheus.CounterVec
	MatchesDelivered *prometheus.CounterVec
	StreamReconnects prometheus.Counter
	StorePruned      prometheus.Counter
	ActiveMonitors   prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests and embedded uses want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MonitorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alps_monitor_failures_total",
			Help: "Total number of absorbed monitor failures",
		}, []string{"channel", "reason"}),
		MatchesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alps_matches_delivered_total",
			Help: "Total number of matches handed to callbacks",
		}, []string{"channel"}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "alps_stream_reconnects_total",
			Help: "Total number of stream redial attempts",
		}),
		StorePruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "alps_store_pruned_total",
			Help: "Total number of expired subscriptions and publications pruned",
		}),
		ActiveMonitors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alps_active_monitors",
			Help: "Current number of registered monitors",
		}),
	}
}

func (m *Metrics) IncMonitorFailure(channel, reason string) {
	if m == nil {
		return
	}
	m.MonitorFailures.WithLabelValues(channel, reason).Inc()
}

func (m *Metrics) AddMatchesDelivered(channel string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MatchesDelivered.WithLabelValues(channel).Add(float64(n))
}

func (m *Metrics) IncStreamReconnects() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

func (m *Metrics) AddStorePruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StorePruned.Add(float64(n))
}

func (m *Metrics) SetActiveMonitors(n int) {
	if m == nil {
		return
	}
	m.ActiveMonitors.Set(float64(n))
}
