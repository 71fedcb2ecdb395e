package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchmore/alps-go/pkg/log"
	"github.com/matchmore/alps-go/pkg/model"
)

// fakeService is an in-memory match service.
type fakeService struct {
	mu      sync.Mutex
	devices map[string]model.Device
	matches map[string][]model.Match
	nextID  int
	status  int
	headers []http.Header
}

func newFakeService() *fakeService {
	return &fakeService{
		devices: make(map[string]model.Device),
		matches: make(map[string][]model.Match),
	}
}

func (f *fakeService) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.headers = append(f.headers, req.Header.Clone())
			status := f.status
			f.mu.Unlock()
			if req.Header.Get(APIKeyHeader) != "secret" {
				http.Error(w, "bad api key", http.StatusUnauthorized)
				return
			}
			if status != 0 {
				http.Error(w, "forced failure", status)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Post("/v5/devices", func(w http.ResponseWriter, req *http.Request) {
		var d model.Device
		if err := json.NewDecoder(req.Body).Decode(&d); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.nextID++
		d.ID = "dev-" + string(rune('0'+f.nextID))
		f.devices[d.ID] = d
		f.mu.Unlock()
		writeJSON(w, d)
	})
	r.Post("/v5/devices/{id}/subscriptions", func(w http.ResponseWriter, req *http.Request) {
		var s model.Subscription
		_ = json.NewDecoder(req.Body).Decode(&s)
		s.ID = "sub-1"
		s.DeviceID = chi.URLParam(req, "id")
		writeJSON(w, s)
	})
	r.Post("/v5/devices/{id}/publications", func(w http.ResponseWriter, req *http.Request) {
		var p model.Publication
		_ = json.NewDecoder(req.Body).Decode(&p)
		p.ID = "pub-1"
		p.DeviceID = chi.URLParam(req, "id")
		writeJSON(w, p)
	})
	r.Post("/v5/devices/{id}/locations", func(w http.ResponseWriter, req *http.Request) {
		var l model.Location
		_ = json.NewDecoder(req.Body).Decode(&l)
		writeJSON(w, l)
	})
	r.Get("/v5/devices/{id}/matches", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.matches[chi.URLParam(req, "id")])
	})
	r.Get("/v5/devices/{id}/matches/{matchID}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, m := range f.matches[chi.URLParam(req, "id")] {
			if m.ID == chi.URLParam(req, "matchID") {
				writeJSON(w, m)
				return
			}
		}
		http.NotFound(w, req)
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingEvents) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestClient(t *testing.T, f *fakeService, opts ...func(*ClientConfig)) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)

	cfg := ClientConfig{BaseURL: srv.URL + "/v5/", APIKey: "secret"}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewHTTPClientValidation(t *testing.T) {
	_, err := NewHTTPClient(ClientConfig{APIKey: "k"})
	assert.Error(t, err)
	_, err = NewHTTPClient(ClientConfig{BaseURL: "http://x"})
	assert.Error(t, err)
}

func TestCreateDevice(t *testing.T) {
	f := newFakeService()
	c := newTestClient(t, f)

	got, err := c.CreateDevice(context.Background(), model.NewPinDevice("pin", model.Location{Latitude: 1, Longitude: 2}))
	require.NoError(t, err)

	assert.Equal(t, "dev-1", got.ID)
	assert.Equal(t, model.KindPin, got.Kind)
	require.NotNil(t, got.Location)
	assert.Equal(t, 2.0, got.Location.Longitude)

	// Every request carries the key and a request id.
	require.Len(t, f.headers, 1)
	assert.Equal(t, "secret", f.headers[0].Get(APIKeyHeader))
	_, err = uuid.Parse(f.headers[0].Get(RequestIDHeader))
	assert.NoError(t, err)
	assert.Equal(t, "application/json", f.headers[0].Get("Content-Type"))
}

func TestCreateSubscriptionPublicationLocation(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, newFakeService())

	sub, err := c.CreateSubscription(ctx, "dev-1", model.Subscription{Topic: "t", Selector: "x > 1", Range: 10, Duration: model.Seconds(30)})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, "dev-1", sub.DeviceID)
	assert.Equal(t, int64(30), *sub.Duration)

	pub, err := c.CreatePublication(ctx, "dev-1", model.Publication{Topic: "t", Properties: map[string]any{"x": 2.0}})
	require.NoError(t, err)
	assert.Equal(t, "pub-1", pub.ID)
	assert.Equal(t, 2.0, pub.Properties["x"])

	loc, err := c.CreateLocation(ctx, "dev-1", model.Location{Latitude: 46.5, Longitude: 6.6})
	require.NoError(t, err)
	assert.Equal(t, 46.5, loc.Latitude)
}

func TestGetMatches(t *testing.T) {
	ctx := context.Background()
	f := newFakeService()
	f.matches["dev-1"] = []model.Match{{ID: "m1"}, {ID: "m2"}}
	c := newTestClient(t, f)

	got, err := c.GetMatches(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[1].ID)

	none, err := c.GetMatches(ctx, "dev-2")
	require.NoError(t, err)
	assert.Empty(t, none)

	m, err := c.GetMatch(ctx, "dev-1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)

	_, err = c.GetMatch(ctx, "dev-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsTransient(err))
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusInternalServerError, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusBadRequest, ErrRejected},
		{http.StatusForbidden, ErrRejected},
		{http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := newFakeService()
			f.status = tt.status
			c := newTestClient(t, f)

			_, err := c.GetMatches(context.Background(), "dev-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Contains(t, se.Body, "forced failure")
		})
	}
}

func TestUnauthorizedIsRejected(t *testing.T) {
	f := newFakeService()
	c := newTestClient(t, f, func(cfg *ClientConfig) { cfg.APIKey = "wrong" })

	_, err := c.CreateDevice(context.Background(), model.NewMobileDevice("m"))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestTimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewHTTPClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.GetMatches(context.Background(), "dev-1")
	assert.True(t, IsTransient(err), "got %v", err)
}

func TestConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(ClientConfig{BaseURL: url, APIKey: "k"})
	require.NoError(t, err)

	_, err = c.GetMatches(context.Background(), "dev-1")
	assert.True(t, IsTransient(err), "got %v", err)
}

func TestCanceledIsNotTransient(t *testing.T) {
	c := newTestClient(t, newFakeService())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetMatches(ctx, "dev-1")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailuresAreCaptured(t *testing.T) {
	f := newFakeService()
	f.status = http.StatusServiceUnavailable
	events := &recordingEvents{}
	c := newTestClient(t, f, func(cfg *ClientConfig) { cfg.EventLogger = events })

	_, _ = c.GetMatches(context.Background(), "dev-9")

	require.Len(t, events.events, 1)
	e := events.events[0]
	assert.Equal(t, log.CategoryError, e.Category)
	assert.Equal(t, "dev-9", e.DeviceID)
	require.NotNil(t, e.Error)
	require.NotNil(t, e.Error.Code)
	assert.Equal(t, http.StatusServiceUnavailable, *e.Error.Code)
	assert.Equal(t, "GetMatches", e.Error.Context)
}
