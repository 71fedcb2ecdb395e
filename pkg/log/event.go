package log

import (
	"fmt"
	"strings"
	"time"
)

// Event is a delivery event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the stream connection or poll loop (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Channel is the delivery channel ("polling" or "websocket").
	Channel string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the monitored device.
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Stream data frames
	ControlMsg  *ControlMsgEvent  `cbor:"11,keyasint,omitempty"` // Ping/pong/close
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Monitor/connection state
	Match       *MatchEvent       `cbor:"13,keyasint,omitempty"` // Delivered matches
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the stream connection (frames, control messages).
	LayerTransport Layer = iota
	// LayerBackend is the request/response API.
	LayerBackend
	// LayerMonitor is match bookkeeping and delivery.
	LayerMonitor
)

// Category classifies the event type.
type Category uint8

const (
	CategoryFrame   Category = iota // stream data frame
	CategoryControl                 // ping, pong, close
	CategoryState                   // monitor or connection state change
	CategoryError
	CategoryMatch // match handed to callbacks
)

var (
	directionNames = []string{DirectionIn: "IN", DirectionOut: "OUT"}
	layerNames     = []string{LayerTransport: "TRANSPORT", LayerBackend: "BACKEND", LayerMonitor: "MONITOR"}
	categoryNames  = []string{
		CategoryFrame:   "FRAME",
		CategoryControl: "CONTROL",
		CategoryState:   "STATE",
		CategoryError:   "ERROR",
		CategoryMatch:   "MATCH",
	}
)

// String methods return the upper-case name, or UNKNOWN for values
// outside the enum.
func (d Direction) String() string { return enumName(directionNames, d) }
func (l Layer) String() string { return enumName(layerNames, l) }
func (c Category) String() string { return enumName(categoryNames, c) }

// ParseDirection parses a direction name, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	return parseEnum[Direction](directionNames, "direction", s)
}

// ParseLayer parses a layer name, case-insensitively.
func ParseLayer(s string) (Layer, error) {
	return parseEnum[Layer](layerNames, "layer", s)
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	return parseEnum[Category](categoryNames, "category", s)
}

func enumName[E ~uint8](names []string, v E) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "UNKNOWN"
}

func parseEnum[E ~uint8](names []string, kind, s string) (E, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return E(i), nil
		}
	}
	return 0, fmt.Errorf("invalid %s %q (one of %s)", kind, s, strings.ToLower(strings.Join(names, ", ")))
}

// FrameEvent captures a stream data frame.
type FrameEvent struct {
	// Size is the payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the payload (a match ID for data frames).
	Data string `cbor:"2,keyasint,omitempty"`
}

// StateChangeEvent captures monitor and connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntityMonitor
)

func (s StateEntity) String() string {
	return enumName([]string{StateEntityConnection: "CONNECTION", StateEntityMonitor: "MONITOR"}, s)
}

// ControlMsgEvent captures stream control messages.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	ControlMsgPing ControlMsgType = iota
	ControlMsgPong
	ControlMsgClose
)

func (c ControlMsgType) String() string {
	return enumName([]string{ControlMsgPing: "PING", ControlMsgPong: "PONG", ControlMsgClose: "CLOSE"}, c)
}

// MatchEvent records one match handed to callbacks.
type MatchEvent struct {
	MatchID        string `cbor:"1,keyasint"`
	SubscriptionID string `cbor:"2,keyasint,omitempty"`
	PublicationID  string `cbor:"3,keyasint,omitempty"`

	// BatchSize is the size of the batch the match was delivered in.
	BatchSize int `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the HTTP status or close code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
