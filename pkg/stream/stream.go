// Package stream is the push transport for match notifications: one
// long-lived connection per device carrying text frames.
//
// The server sends "ping" to check liveness and expects "pong" back.
// Every other text frame is the identifier of a new match.
package stream

import (
	"context"
	"errors"
	"strings"
)

// ErrClosed is returned by Receive and Send after Close.
var ErrClosed = errors.New("stream closed")

// Keep-alive frame payloads.
const (
	PingText = "ping"
	PongText = "pong"
)

// FrameKind classifies an incoming frame.
type FrameKind uint8

const (
	// FrameData carries a match identifier.
	FrameData FrameKind = iota

	// FramePing is a liveness probe that must be answered with PongText.
	FramePing

	// FramePong answers a ping.
	FramePong
)

// String returns the frame kind name.
func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "DATA"
	case FramePing:
		return "PING"
	case FramePong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// Frame is one received text message.
type Frame struct {
	Kind FrameKind
	Data string
}

// ParseFrame classifies a text payload.
func ParseFrame(text string) Frame {
	switch text {
	case PingText:
		return Frame{Kind: FramePing, Data: text}
	case PongText:
		return Frame{Kind: FramePong, Data: text}
	default:
		return Frame{Kind: FrameData, Data: strings.TrimSpace(text)}
	}
}

// Credential authenticates a stream. It is sent as the WebSocket
// subprotocol list ["api-key", WorldID].
type Credential struct {
	WorldID string
}

// Subprotocols returns the handshake subprotocol list.
func (c Credential) Subprotocols() []string {
	return []string{"api-key", c.WorldID}
}

// Conn is an open stream.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string

	// Receive blocks until a frame arrives, ctx is done, or the
	// connection fails.
	Receive(ctx context.Context) (Frame, error)

	// Send writes a text frame.
	Send(ctx context.Context, text string) error

	// Close closes the connection. It is safe to call multiple times.
	Close() error
}

// Dialer opens streams.
type Dialer interface {
	Dial(ctx context.Context, url string, cred Credential) (Conn, error)
}
