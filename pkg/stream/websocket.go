package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// DefaultHandshakeTimeout bounds the opening handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultReadLimit caps a single frame.
	DefaultReadLimit = 64 << 10
)

// WebSocketDialer dials streams over WebSocket.
type WebSocketDialer struct {
	// HTTPClient is used for the handshake. If nil, the default client is used.
	HTTPClient *http.Client

	// HandshakeTimeout bounds Dial. Zero uses DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// ReadLimit caps a single frame. Zero uses DefaultReadLimit.
	ReadLimit int64

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Dial opens a WebSocket stream to url.
func (d *WebSocketDialer) Dial(ctx context.Context, url string, cred Credential) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, resp, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		HTTPClient:   d.HTTPClient,
		Subprotocols: cred.Subprotocols(),
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	c.SetReadLimit(limit)

	conn := &wsConn{id: uuid.NewString(), conn: c, closed: make(chan struct{})}
	if d.Logger != nil {
		d.Logger.Debug("stream connected", "url", url, "conn_id", conn.id, "subprotocol", c.Subprotocol())
	}
	return conn, nil
}

type wsConn struct {
	id   string
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Receive(ctx context.Context) (Frame, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			select {
			case <-c.closed:
				return Frame{}, ErrClosed
			default:
			}
			return Frame{}, err
		}
		if typ != websocket.MessageText {
			continue
		}
		return ParseFrame(string(data)), nil
	}
}

func (c *wsConn) Send(ctx context.Context, text string) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	return c.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		err := c.conn.Close(websocket.StatusNormalClosure, "")
		var ce websocket.CloseError
		if err != nil && !errors.As(err, &ce) && !errors.Is(err, net.ErrClosed) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

// CloseStatus returns the close code carried by err, or -1.
func CloseStatus(err error) int {
	return int(websocket.CloseStatus(err))
}

var _ Dialer = (*WebSocketDialer)(nil)
