// Package commands implements the alps CLI commands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/matchmore/alps-go/pkg/config"
	"github.com/matchmore/alps-go/pkg/log"
	"github.com/matchmore/alps-go/pkg/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath  string
	APIKey      string
	Environment string
	StateDir    string
	Verbose     bool
	Format      string // "text" | "json"
}

// ValidFormats are the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "alps",
		Short:         "Location based publish/subscribe client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.APIKey, "api-key", "", "API key (overrides config and ALPS_API_KEY)")
	cmd.PersistentFlags().StringVar(&opts.Environment, "env", "", "backend host (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.StateDir, "state-dir", "", "state directory of the file backend")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(NewDeviceCommand(opts))
	cmd.AddCommand(NewSubscriptionCommand(opts))
	cmd.AddCommand(NewPublicationCommand(opts))
	cmd.AddCommand(NewMatchesCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig layers defaults, the config file, ALPS_* variables and flags.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	if opts.Environment != "" {
		cfg.Environment = opts.Environment
	}
	if opts.StateDir != "" {
		cfg.StateDir = opts.StateDir
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// openSession configures the process session from the global flags.
func openSession(ctx context.Context, opts *RootOptions, extra ...session.Option) (*session.Session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return session.Configure(ctx, cfg, append(sessionOptions(opts, cfg), extra...)...)
}

// closeSession cleans s up and logs a failure, for use in defer.
func closeSession(s interface{ Cleanup() error }, logger *slog.Logger) {
	if err := s.Cleanup(); err != nil {
		logger.Error("session cleanup failed", "error", err)
	}
}

// sessionOptions routes operational logs to stderr. In verbose mode
// delivery events are logged there too.
func sessionOptions(opts *RootOptions, cfg config.Config) []session.Option {
	logger := newLogger(cfg, os.Stderr)
	sopts := []session.Option{session.WithLogger(logger)}
	if opts.Verbose {
		sopts = append(sopts, session.WithEventLogger(log.NewSlogAdapter(logger)))
	}
	return sopts
}
