package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matchmore/alps-go/pkg/metrics"
	"github.com/matchmore/alps-go/pkg/model"
	"github.com/matchmore/alps-go/pkg/monitor"
	"github.com/matchmore/alps-go/pkg/session"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Channel     string
	DeviceID    string
	MetricsAddr string
	ProtocolLog string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print matches as they are delivered",
		Long: `Subscribe to the matches of a device and print every new match until
interrupted.

Examples:
  alps watch
  alps watch --channel polling --device 3b6c2a0e-...
  alps watch --metrics-addr :9090 --protocol-log alps.mlog`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Channel, "channel", "websocket", "delivery channel (websocket|polling)")
	cmd.Flags().StringVar(&opts.DeviceID, "device", "", "device ID (default: main device)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.ProtocolLog, "protocol-log", "", "capture delivery events to this file")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, out io.Writer) error {
	channel, err := monitor.ParseChannel(opts.Channel)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.ProtocolLog != "" {
		cfg.ProtocolLogFile = opts.ProtocolLog
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	logger := newLogger(cfg, os.Stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s, err := session.Configure(ctx, cfg,
		append(sessionOptions(opts.RootOptions, cfg), session.WithMetrics(metrics.New(reg)))...)
	if err != nil {
		return err
	}
	defer closeSession(s, logger)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsRouter(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	var mu sync.Mutex
	s.OnMatch(func(deviceID string, matches []model.Match) {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range matches {
			if opts.Format == "json" {
				_ = printResult(out, "json", m, nil)
				continue
			}
			fmt.Fprintf(out, "[%s] ", deviceID)
			formatMatch(out, m)
		}
	})

	m, err := s.SubscribeMatches(ctx, channel, opts.DeviceID)
	if err != nil {
		return err
	}
	logger.Info("watching matches", "device_id", m.DeviceID(), "channel", m.Channel().String())

	<-ctx.Done()
	return nil
}

// metricsRouter serves /metrics and a liveness probe.
func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}
