// Package monitor delivers de-duplicated match batches for one device,
// either by polling the match list or by listening on a push stream.
//
// A monitor never returns errors once started. Failures are logged,
// counted in metrics, and captured in the event log; delivery resumes on
// the next poll or frame.
//
// Callbacks run on the monitor's own goroutines and never under a lock
// that Subscribe or Unsubscribe take, so a callback may unsubscribe
// itself or stop the monitor delivering to it. Batches are delivered one
// at a time.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matchmore/alps-go/pkg/model"
)

// ErrUnknownChannel is returned by ParseChannel. It wraps
// model.ErrValidation.
var ErrUnknownChannel = fmt.Errorf("%w: unknown channel", model.ErrValidation)

// ErrStopped is returned by Start on a stopped monitor.
var ErrStopped = errors.New("monitor stopped")

// Channel selects the delivery transport.
type Channel uint8

const (
	// ChannelPolling periodically queries the match list.
	ChannelPolling Channel = iota

	// ChannelWebsocket listens for pushed match identifiers.
	ChannelWebsocket
)

// String returns the channel name used in configs, metrics and logs.
func (c Channel) String() string {
	switch c {
	case ChannelPolling:
		return "polling"
	case ChannelWebsocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// ParseChannel parses a channel name.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "polling", "poll":
		return ChannelPolling, nil
	case "websocket", "ws":
		return ChannelWebsocket, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownChannel, s)
	}
}

// Callback receives a non-empty batch of new matches. Polling batches may
// hold any number of matches; streaming batches hold exactly one.
type Callback func(matches []model.Match)

// CallbackID identifies a subscribed callback.
type CallbackID uint64

// RemoveFunc is invoked exactly once when a monitor stops, so its owner
// can drop it from a registry.
type RemoveFunc func(deviceID string, m Monitor)

// Monitor delivers match batches for one device.
type Monitor interface {
	// Start begins delivery. Starting a running monitor is a no-op;
	// starting a stopped one returns ErrStopped.
	Start() error

	// Stop permanently halts delivery. No callback starts after Stop
	// returns. Stop waits for in-flight network work unless a callback
	// is running, in which case it cancels that work and returns at once.
	// Safe to call multiple times, including from a callback.
	Stop()

	// Subscribe registers cb for every future batch.
	Subscribe(cb Callback) CallbackID

	// Unsubscribe removes a callback and reports whether it was present.
	Unsubscribe(id CallbackID) bool

	DeviceID() string
	Channel() Channel

	// Stopped reports whether Stop has been called.
	Stopped() bool
}

// MatchLister returns the current match list of a device.
type MatchLister interface {
	GetMatches(ctx context.Context, deviceID string) ([]model.Match, error)
}

// MatchResolver resolves a pushed match identifier.
type MatchResolver interface {
	GetMatch(ctx context.Context, deviceID, matchID string) (model.Match, error)
}
