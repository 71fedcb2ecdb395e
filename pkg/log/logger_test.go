package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	rec := &recordingLogger{}
	if OrNoop(rec) != Logger(rec) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
	// Must not panic.
	NoopLogger{}.Log(Event{})
}

func TestMultiLoggerFansOut(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{ConnectionID: "x"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("got %d and %d events, want 1 each", len(a.events), len(b.events))
	}
	if b.events[0].ConnectionID != "x" {
		t.Errorf("ConnectionID: got %q, want x", b.events[0].ConnectionID)
	}
}

func decodeSlog(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsMatchEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Log(Event{
		ConnectionID: "conn-1",
		Layer:        LayerMonitor,
		Category:     CategoryMatch,
		Channel:      "polling",
		DeviceID:     "dev-1",
		Match:        &MatchEvent{MatchID: "m1", SubscriptionID: "s1", PublicationID: "p1", BatchSize: 2},
	})

	entry := decodeSlog(t, &buf)
	checks := map[string]any{
		"msg":       "delivery",
		"level":     "DEBUG",
		"conn_id":   "conn-1",
		"layer":     "MONITOR",
		"category":  "MATCH",
		"channel":   "polling",
		"device_id": "dev-1",
		"match_id":  "m1",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("%s: got %v, want %v", k, entry[k], want)
		}
	}
	if entry["batch_size"] != float64(2) {
		t.Errorf("batch_size: got %v, want 2", entry["batch_size"])
	}
}

func TestSlogAdapterLogsErrorsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	code := 401
	adapter.Log(Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerBackend, Message: "rejected", Code: &code},
	})

	entry := decodeSlog(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level: got %v, want WARN", entry["level"])
	}
	if entry["error_code"] != float64(401) {
		t.Errorf("error_code: got %v, want 401", entry["error_code"])
	}
}

func TestEnumStrings(t *testing.T) {
	if DirectionOut.String() != "OUT" || Direction(9).String() != "UNKNOWN" {
		t.Error("Direction.String mismatch")
	}
	if LayerBackend.String() != "BACKEND" {
		t.Error("Layer.String mismatch")
	}
	if CategoryControl.String() != "CONTROL" {
		t.Error("Category.String mismatch")
	}
	if ControlMsgPing.String() != "PING" {
		t.Error("ControlMsgType.String mismatch")
	}
	if StateEntityConnection.String() != "CONNECTION" {
		t.Error("StateEntity.String mismatch")
	}
}
