// Package config holds client settings: backend addressing, credentials,
// state backend selection and task cadences.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"

	"github.com/matchmore/alps-go/pkg/connection"
)

const (
	// APIVersion is the backend API version path segment.
	APIVersion = "v5"

	// ProductionHost is the default backend environment.
	ProductionHost = "api.matchmore.io"
)

// State backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var (
	// ErrInvalidConfig is returned when a configuration fails validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNoWorldID is returned when no world id is configured and the API
	// key carries none.
	ErrNoWorldID = errors.New("no world id")
)

// Config configures a session.
type Config struct {
	// APIKey authenticates every backend request. Required.
	APIKey string `yaml:"apiKey"`

	// Environment is the backend host. It also scopes persisted state.
	Environment string `yaml:"environment"`

	// UseSecuredCommunication selects https/wss over http/ws.
	UseSecuredCommunication bool `yaml:"useSecuredCommunication"`

	// ServicePort overrides the API port (0 = scheme default).
	ServicePort int `yaml:"servicePort"`

	// PusherPort overrides the streaming port (0 = scheme default).
	PusherPort int `yaml:"pusherPort"`

	// WorldID is the tenant identifier. Derived from the API key if empty.
	WorldID string `yaml:"worldId"`

	// StateBackend is one of file, redis, postgres or memory.
	StateBackend string `yaml:"stateBackend"`

	// StateDir is the directory of the file backend.
	StateDir string `yaml:"stateDir"`

	RedisURL    string `yaml:"redisUrl"`
	PostgresDSN string `yaml:"postgresDsn"`

	// PollInterval is the polling monitor cadence.
	PollInterval time.Duration `yaml:"pollInterval"`

	// PruneInterval is the expiry pruning cadence.
	PruneInterval time.Duration `yaml:"pruneInterval"`

	// LocationInterval is the location service cadence.
	LocationInterval time.Duration `yaml:"locationInterval"`

	// RequestTimeout bounds every backend request.
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// Reconnect enables redialing dropped match streams.
	Reconnect bool `yaml:"reconnect"`

	ReconnectBackoff connection.BackoffConfig `yaml:"reconnectBackoff"`

	// ProtocolLogFile, when set, captures delivery events in CBOR.
	ProtocolLogFile string `yaml:"protocolLogFile"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"logLevel"`

	// KafkaBrokers, when set, forwards delivered matches to KafkaTopic.
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafkaTopic"`

	// MetricsAddr, when set, serves prometheus metrics (CLI only).
	MetricsAddr string `yaml:"metricsAddr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Environment:             ProductionHost,
		UseSecuredCommunication: true,
		StateBackend:            BackendFile,
		StateDir:                ".alps",
		PollInterval:            3 * time.Second,
		PruneInterval:           1 * time.Second,
		LocationInterval:        30 * time.Second,
		RequestTimeout:          10 * time.Second,
		Reconnect:               true,
		ReconnectBackoff:        connection.DefaultBackoffConfig(),
		LogLevel:                "info",
		KafkaTopic:              "alps.matches",
	}
}

// WithAPIKey returns the default config for apiKey.
func WithAPIKey(apiKey string) Config {
	cfg := DefaultConfig()
	cfg.APIKey = apiKey
	return cfg
}

// Load reads a YAML file on top of DefaultConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ALPS_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ALPS_API_KEY":           &c.APIKey,
		"ALPS_ENVIRONMENT":       &c.Environment,
		"ALPS_WORLD_ID":          &c.WorldID,
		"ALPS_STATE_BACKEND":     &c.StateBackend,
		"ALPS_STATE_DIR":         &c.StateDir,
		"ALPS_REDIS_URL":         &c.RedisURL,
		"ALPS_POSTGRES_DSN":      &c.PostgresDSN,
		"ALPS_PROTOCOL_LOG_FILE": &c.ProtocolLogFile,
		"ALPS_LOG_LEVEL":         &c.LogLevel,
		"ALPS_KAFKA_TOPIC":       &c.KafkaTopic,
		"ALPS_METRICS_ADDR":      &c.MetricsAddr,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ALPS_SERVICE_PORT": &c.ServicePort,
		"ALPS_PUSHER_PORT":  &c.PusherPort,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"ALPS_POLL_INTERVAL":     &c.PollInterval,
		"ALPS_PRUNE_INTERVAL":    &c.PruneInterval,
		"ALPS_LOCATION_INTERVAL": &c.LocationInterval,
		"ALPS_REQUEST_TIMEOUT":   &c.RequestTimeout,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"ALPS_SECURE":    &c.UseSecuredCommunication,
		"ALPS_RECONNECT": &c.Reconnect,
	}
	for name, dst := range bools {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup("ALPS_KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks if the config is usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api key is empty", ErrInvalidConfig)
	}
	if c.Environment == "" {
		return fmt.Errorf("%w: environment is empty", ErrInvalidConfig)
	}
	if c.ServicePort < 0 || c.ServicePort > 65535 || c.PusherPort < 0 || c.PusherPort > 65535 {
		return fmt.Errorf("%w: port out of range", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 || c.PruneInterval <= 0 || c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	switch c.StateBackend {
	case BackendFile:
		if c.StateDir == "" {
			return fmt.Errorf("%w: state dir is empty", ErrInvalidConfig)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: redis url is empty", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres dsn is empty", ErrInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown state backend %q", ErrInvalidConfig, c.StateBackend)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("%w: kafka topic is empty", ErrInvalidConfig)
	}
	return nil
}

// APIURL returns the backend base URL, e.g. https://api.matchmore.io/v5.
func (c *Config) APIURL() string {
	scheme := "http"
	if c.UseSecuredCommunication {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, hostPort(c.environment(), c.ServicePort), APIVersion)
}

// PusherURL returns the match stream URL for deviceID.
func (c *Config) PusherURL(deviceID string) string {
	scheme := "ws"
	if c.UseSecuredCommunication {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/pusher/%s/ws/%s",
		scheme, hostPort(c.environment(), c.PusherPort), APIVersion, url.PathEscape(deviceID))
}

// Namespace scopes persisted state to the backend environment.
func (c *Config) Namespace() string {
	return "state/" + c.environment()
}

func (c *Config) environment() string {
	if c.Environment == "" {
		return ProductionHost
	}
	return c.Environment
}

func hostPort(host string, port int) string {
	if port == 0 {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}

// ResolveWorldID returns WorldID, or the world id carried by the API key.
func (c *Config) ResolveWorldID() (string, error) {
	if c.WorldID != "" {
		return c.WorldID, nil
	}
	return WorldIDFromAPIKey(c.APIKey)
}

// WorldIDFromAPIKey extracts the subject of the API key token. The key is
// verified by the backend, so the signature is not checked here.
func WorldIDFromAPIKey(apiKey string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(apiKey, claims); err != nil {
		return "", fmt.Errorf("%w: parse api key: %v", ErrNoWorldID, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: api key has no subject", ErrNoWorldID)
	}
	return claims.Subject, nil
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to Info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
