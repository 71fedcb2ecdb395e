package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matchmore/alps-go/pkg/log"
	"github.com/matchmore/alps-go/pkg/model"
)

const (
	// APIKeyHeader carries the API key on every request.
	APIKeyHeader = "api-key"

	// RequestIDHeader carries a per-request UUID for correlation.
	RequestIDHeader = "X-Request-ID"

	// DefaultTimeout bounds a request when no timeout is configured.
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 4 << 20

	tracerName = "github.com/matchmore/alps-go/pkg/backend"
)

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://api.matchmore.io/v5. Required.
	BaseURL string

	// APIKey authenticates requests. Required.
	APIKey string

	// Timeout bounds each request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// HTTPClient is used for all requests. If nil, a new client is used.
	HTTPClient *http.Client

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// EventLogger receives failed requests. If nil, nothing is captured.
	EventLogger log.Logger

	// Tracer creates request spans. If nil, the global provider is used.
	Tracer trace.Tracer
}

// HTTPClient talks JSON over HTTP to the match service.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	events     log.Logger
	tracer     trace.Tracer
}

// NewHTTPClient creates a client.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("backend: api key is required")
	}

	c := &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		events:     log.OrNoop(cfg.EventLogger),
		tracer:     cfg.Tracer,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c, nil
}

// CreateDevice registers a device and returns it with its assigned ID.
func (c *HTTPClient) CreateDevice(ctx context.Context, device model.Device) (model.Device, error) {
	var out model.Device
	err := c.do(ctx, "CreateDevice", http.MethodPost, "/devices", "", device, &out)
	return out, err
}

// CreateSubscription registers a subscription for deviceID.
func (c *HTTPClient) CreateSubscription(ctx context.Context, deviceID string, sub model.Subscription) (model.Subscription, error) {
	var out model.Subscription
	err := c.do(ctx, "CreateSubscription", http.MethodPost, devicePath(deviceID, "subscriptions"), deviceID, sub, &out)
	return out, err
}

// CreatePublication registers a publication for deviceID.
func (c *HTTPClient) CreatePublication(ctx context.Context, deviceID string, pub model.Publication) (model.Publication, error) {
	var out model.Publication
	err := c.do(ctx, "CreatePublication", http.MethodPost, devicePath(deviceID, "publications"), deviceID, pub, &out)
	return out, err
}

// CreateLocation reports the position of deviceID.
func (c *HTTPClient) CreateLocation(ctx context.Context, deviceID string, loc model.Location) (model.Location, error) {
	var out model.Location
	err := c.do(ctx, "CreateLocation", http.MethodPost, devicePath(deviceID, "locations"), deviceID, loc, &out)
	return out, err
}

// GetMatches returns the current matches of deviceID.
func (c *HTTPClient) GetMatches(ctx context.Context, deviceID string) ([]model.Match, error) {
	var out []model.Match
	err := c.do(ctx, "GetMatches", http.MethodGet, devicePath(deviceID, "matches"), deviceID, nil, &out)
	return out, err
}

// GetMatch resolves one match of deviceID.
func (c *HTTPClient) GetMatch(ctx context.Context, deviceID, matchID string) (model.Match, error) {
	var out model.Match
	path := devicePath(deviceID, "matches") + "/" + url.PathEscape(matchID)
	err := c.do(ctx, "GetMatch", http.MethodGet, path, deviceID, nil, &out)
	return out, err
}

func devicePath(deviceID, collection string) string {
	return "/devices/" + url.PathEscape(deviceID) + "/" + collection
}

// do performs one request. On 2xx the body is decoded into out; on other
// statuses a *StatusError is returned.
func (c *HTTPClient) do(ctx context.Context, op, method, path, deviceID string, body, out any) (err error) {
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("alps.request_id", requestID),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logFailure(op, deviceID, err)
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s body: %w", op, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("backend: %s %s: %w", method, path, err)
		}
		return fmt.Errorf("%w: %s %s: %w", ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", ErrTransient, op, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.debugLog("backend request",
		"op", op, "status", resp.StatusCode, "request_id", requestID, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend: decode %s response: %w", op, err)
	}
	return nil
}

func (c *HTTPClient) logFailure(op, deviceID string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	data := &log.ErrorEventData{Layer: log.LayerBackend, Message: err.Error(), Context: op}
	var se *StatusError
	if errors.As(err, &se) {
		code := se.StatusCode
		data.Code = &code
	}
	c.events.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerBackend,
		Category:  log.CategoryError,
		DeviceID:  deviceID,
		Error:     data,
	})
}

func (c *HTTPClient) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

var _ Backend = (*HTTPClient)(nil)
