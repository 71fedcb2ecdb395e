package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/matchmore/alps-go/pkg/backend"
	"github.com/matchmore/alps-go/pkg/kvstore"
	"github.com/matchmore/alps-go/pkg/log"
	"github.com/matchmore/alps-go/pkg/metrics"
	"github.com/matchmore/alps-go/pkg/model"
	"github.com/matchmore/alps-go/pkg/sink"
	"github.com/matchmore/alps-go/pkg/stream"
)

// LocationProvider reports the current position of the main device.
type LocationProvider interface {
	// CurrentLocation returns false when no fix is available.
	CurrentLocation(ctx context.Context) (model.Location, bool)
}

// LocationFunc adapts a function to LocationProvider.
type LocationFunc func(ctx context.Context) (model.Location, bool)

// CurrentLocation calls f.
func (f LocationFunc) CurrentLocation(ctx context.Context) (model.Location, bool) {
	return f(ctx)
}

type options struct {
	backend  backend.Backend
	dialer   stream.Dialer
	kv       kvstore.Store
	logger   *slog.Logger
	events   log.Logger
	metrics  *metrics.Metrics
	location LocationProvider
	sink     *sink.Kafka
	timeNow  func() time.Time
}

// Option customizes a Session.
type Option func(*options)

// WithBackend replaces the HTTP backend client.
func WithBackend(b backend.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d stream.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithStore replaces the configured state backend. The session does not
// close a store supplied this way.
func WithStore(kv kvstore.Store) Option {
	return func(o *options) { o.kv = kv }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEventLogger captures protocol events in addition to the configured
// protocol log file.
func WithEventLogger(l log.Logger) Option {
	return func(o *options) { o.events = l }
}

// WithMetrics records counters and gauges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLocationProvider enables the location service.
func WithLocationProvider(p LocationProvider) Option {
	return func(o *options) { o.location = p }
}

// WithSink forwards every delivered batch to k. The session closes it.
func WithSink(k *sink.Kafka) Option {
	return func(o *options) { o.sink = k }
}

// WithClock sets the clock used for pruning.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.timeNow = now }
}
