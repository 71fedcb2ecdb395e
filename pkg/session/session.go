package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchmore/alps-go/pkg/backend"
	"github.com/matchmore/alps-go/pkg/config"
	"github.com/matchmore/alps-go/pkg/kvstore"
	"github.com/matchmore/alps-go/pkg/log"
	"github.com/matchmore/alps-go/pkg/metrics"
	"github.com/matchmore/alps-go/pkg/model"
	"github.com/matchmore/alps-go/pkg/monitor"
	"github.com/matchmore/alps-go/pkg/persistence"
	"github.com/matchmore/alps-go/pkg/scheduler"
	"github.com/matchmore/alps-go/pkg/sink"
	"github.com/matchmore/alps-go/pkg/stream"
)

// Background task names.
const (
	PruneTaskName    = "persistence"
	LocationTaskName = "location_service"
)

var (
	// ErrAlreadyConfigured is returned by Configure while a configured
	// session is live.
	ErrAlreadyConfigured = errors.New("session already configured")

	// ErrNoDevice is returned when an operation needs a device and none
	// was given or persisted. It wraps model.ErrValidation.
	ErrNoDevice = fmt.Errorf("%w: no device", model.ErrValidation)

	// ErrSessionClosed is returned by operations after Cleanup.
	ErrSessionClosed = errors.New("session closed")
)

// configured guards Configure.
var configured atomic.Bool

// MatchHandler receives every batch delivered by any monitor of the
// session.
type MatchHandler func(deviceID string, matches []model.Match)

// HandlerID identifies a registered MatchHandler.
type HandlerID uint64

type handlerEntry struct {
	id HandlerID
	fn MatchHandler
}

// Session is the entry point for creating devices and receiving matches.
type Session struct {
	cfg     config.Config
	backend backend.Backend
	dialer  stream.Dialer
	store   *persistence.Store
	sched   *scheduler.Scheduler

	logger   *slog.Logger
	events   log.Logger
	metrics  *metrics.Metrics
	location LocationProvider
	timeNow  func() time.Time

	// Owned resources closed by Cleanup.
	kv      kvstore.Store
	ownsKV  bool
	fileLog *log.FileLogger
	sink    *sink.Kafka

	// installMu serializes monitor installs. mu guards the fields below.
	installMu   sync.Mutex
	mu          sync.Mutex
	monitors    map[string]monitor.Monitor
	handlers    []handlerEntry
	nextHandler HandlerID
	closed      bool

	// dispatching counts handler dispatches in progress.
	dispatching atomic.Int32

	guarded     bool
	cleanupOnce sync.Once
	cleanupErr  error
}

// Configure creates the process-wide session. It fails with
// ErrAlreadyConfigured until the previous one is cleaned up.
func Configure(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	if !configured.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConfigured
	}
	s, err := New(ctx, cfg, opts...)
	if err != nil {
		configured.Store(false)
		return nil, err
	}
	s.guarded = true
	return s, nil
}

// New creates a session: it opens the persisted state, creates a mobile
// main device when none is persisted, and starts the background tasks.
//
// New does not take the process-wide guard of Configure. It is the
// constructor for tests and for programs embedding several sessions,
// each with its own state namespace.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{timeNow: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		cfg:      cfg,
		logger:   o.logger,
		metrics:  o.metrics,
		location: o.location,
		timeNow:  o.timeNow,
		sink:     o.sink,
		monitors: make(map[string]monitor.Monitor),
		sched:    scheduler.New(o.logger),
	}

	if err := s.init(ctx, o); err != nil {
		s.sched.Close()
		if cerr := s.closeResources(); cerr != nil {
			s.warnLog("closing after failed start", "error", cerr)
		}
		return nil, err
	}
	return s, nil
}

func (s *Session) init(ctx context.Context, o options) error {
	var loggers []log.Logger
	if o.events != nil {
		loggers = append(loggers, o.events)
	}
	if s.cfg.ProtocolLogFile != "" {
		fl, err := log.NewFileLogger(s.cfg.ProtocolLogFile)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		s.fileLog = fl
		loggers = append(loggers, fl)
	}
	s.events = log.NewMultiLogger(loggers...)

	s.backend = o.backend
	if s.backend == nil {
		c, err := backend.NewHTTPClient(backend.ClientConfig{
			BaseURL:     s.cfg.APIURL(),
			APIKey:      s.cfg.APIKey,
			Timeout:     s.cfg.RequestTimeout,
			Logger:      s.logger,
			EventLogger: s.events,
		})
		if err != nil {
			return err
		}
		s.backend = c
	}

	s.dialer = o.dialer
	if s.dialer == nil {
		s.dialer = &stream.WebSocketDialer{
			HandshakeTimeout: s.cfg.RequestTimeout,
			Logger:           s.logger,
		}
	}

	s.kv = o.kv
	if s.kv == nil {
		kv, err := openKV(ctx, s.cfg)
		if err != nil {
			return err
		}
		s.kv = kv
		s.ownsKV = true
	}

	store, err := persistence.Open(ctx, s.kv, s.cfg.Namespace(),
		persistence.WithLogger(s.logger),
		persistence.WithClock(s.timeNow),
		persistence.WithMetrics(s.metrics),
	)
	if err != nil {
		return err
	}
	s.store = store

	if s.sink == nil && len(s.cfg.KafkaBrokers) > 0 {
		k, err := sink.NewKafka(s.cfg.KafkaBrokers, sink.KafkaConfig{
			Topic:   s.cfg.KafkaTopic,
			Timeout: s.cfg.RequestTimeout,
			Logger:  s.logger,
		})
		if err != nil {
			return err
		}
		s.sink = k
	}
	if s.sink != nil {
		s.OnMatch(s.sink.Forward)
	}

	if _, ok := s.store.Device(); !ok {
		if _, err := s.CreateDevice(ctx, model.Device{Kind: model.KindMobile}, true); err != nil {
			return fmt.Errorf("create main device: %w", err)
		}
	}

	if _, err := s.sched.RunPeriodic(PruneTaskName, s.cfg.PruneInterval, s.prune); err != nil {
		return err
	}
	if s.location != nil {
		if err := s.StartLocationService(); err != nil {
			return err
		}
	}
	return nil
}

func openKV(ctx context.Context, cfg config.Config) (kvstore.Store, error) {
	switch cfg.StateBackend {
	case config.BackendFile:
		return kvstore.NewFileStore(cfg.StateDir), nil
	case config.BackendMemory:
		return kvstore.NewMemoryStore(), nil
	case config.BackendRedis:
		st, err := kvstore.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendPostgres:
		st, err := kvstore.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w: unknown state backend %q", config.ErrInvalidConfig, cfg.StateBackend)
	}
}

// Config returns the session configuration.
func (s *Session) Config() config.Config {
	return s.cfg
}

// Recovered reports whether corrupt persisted state was discarded on start.
func (s *Session) Recovered() bool {
	return s.store.Recovered()
}

func (s *Session) prune(ctx context.Context) {
	n, err := s.store.PruneExpired(ctx, s.timeNow())
	if err != nil {
		if ctx.Err() == nil {
			s.warnLog("pruning expired entries failed", "error", err)
		}
		return
	}
	if n > 0 {
		s.debugLog("pruned expired entries", "count", n)
	}
}

// StartLocationService starts reporting the provider's location for the
// main device. It is a no-op without a provider or when already running.
func (s *Session) StartLocationService() error {
	if s.location == nil {
		return nil
	}
	interval := s.cfg.LocationInterval
	if interval <= 0 {
		interval = config.DefaultConfig().LocationInterval
	}
	_, err := s.sched.RunPeriodic(LocationTaskName, interval, s.reportLocation)
	if errors.Is(err, scheduler.ErrTaskExists) {
		return nil
	}
	if errors.Is(err, scheduler.ErrClosed) {
		return ErrSessionClosed
	}
	return err
}

// StopLocationService stops the location service.
func (s *Session) StopLocationService() {
	s.sched.Cancel(LocationTaskName)
}

func (s *Session) reportLocation(ctx context.Context) {
	loc, ok := s.location.CurrentLocation(ctx)
	if !ok {
		s.debugLog("no location fix")
		return
	}
	if _, err := s.UpdateLocation(ctx, "", loc); err != nil && ctx.Err() == nil {
		s.warnLog("location update failed", "error", err)
	}
}

// Cleanup stops every monitor and background task and closes the owned
// resources. It releases the Configure guard. Calling it again is a no-op.
//
// Called from a MatchHandler, or while one runs, Cleanup cancels the
// background tasks and
// returns without waiting for them. The resources are closed and the
// guard released once they finish; a close error is then only logged.
func (s *Session) Cleanup() error {
	s.cleanupOnce.Do(func() {
		s.cleanupErr = s.cleanup()
	})
	return s.cleanupErr
}

func (s *Session) cleanup() error {
	s.installMu.Lock()
	s.mu.Lock()
	s.closed = true
	mons := make([]monitor.Monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		mons = append(mons, m)
	}
	s.monitors = make(map[string]monitor.Monitor)
	s.mu.Unlock()
	s.installMu.Unlock()

	var g errgroup.Group
	for _, m := range mons {
		m := m
		g.Go(func() error {
			m.Stop()
			return nil
		})
	}
	_ = g.Wait()
	s.metrics.SetActiveMonitors(0)

	s.sched.Shutdown()
	if s.dispatching.Load() > 0 {
		go func() {
			if err := s.finishCleanup(len(mons)); err != nil {
				s.warnLog("closing resources failed", "error", err)
			}
		}()
		return nil
	}
	return s.finishCleanup(len(mons))
}

func (s *Session) finishCleanup(monitors int) error {
	s.sched.Wait()
	err := s.closeResources()

	if s.guarded {
		configured.Store(false)
	}
	s.debugLog("session cleaned up", "monitors", monitors)
	return err
}

func (s *Session) closeResources() error {
	var errs []error
	if s.sink != nil {
		errs = append(errs, s.sink.Close())
	}
	if s.ownsKV && s.kv != nil {
		errs = append(errs, s.kv.Close())
	}
	if s.fileLog != nil {
		errs = append(errs, s.fileLog.Close())
	}
	return errors.Join(errs...)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Session) warnLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
