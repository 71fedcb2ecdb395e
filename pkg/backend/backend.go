// Package backend is the request/response surface of the match service:
// device, subscription, publication and location creation, and match
// queries.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/matchmore/alps-go/pkg/model"
)

var (
	// ErrTransient marks failures worth retrying on the next tick: network
	// errors, timeouts, 5xx and 429 responses.
	ErrTransient = errors.New("transient backend failure")

	// ErrRejected marks a 4xx response other than 404, 408 and 429.
	ErrRejected = errors.New("request rejected")

	// ErrNotFound marks a 404 response.
	ErrNotFound = errors.New("not found")
)

// Backend is the RPC surface consumed by sessions and monitors.
type Backend interface {
	CreateDevice(ctx context.Context, device model.Device) (model.Device, error)
	CreateSubscription(ctx context.Context, deviceID string, sub model.Subscription) (model.Subscription, error)
	CreatePublication(ctx context.Context, deviceID string, pub model.Publication) (model.Publication, error)
	CreateLocation(ctx context.Context, deviceID string, loc model.Location) (model.Location, error)
	GetMatches(ctx context.Context, deviceID string) ([]model.Match, error)
	GetMatch(ctx context.Context, deviceID, matchID string) (model.Match, error)
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap classifies the status into ErrTransient, ErrNotFound or
// ErrRejected.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode >= 500,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout:
		return ErrTransient
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrRejected
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
