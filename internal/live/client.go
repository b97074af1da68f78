// Package live follows a running agent session over a WebSocket connection
// and turns each frame into a domain event.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"acplog/internal/logging"
	"acplog/internal/model"
	"acplog/internal/parser"
)

// Frame is one received text frame. OK reports whether Raw classified into
// Event; unclassified frames are still delivered so they can be recorded.
type Frame struct {
	Raw   []byte
	Event model.Event
	OK    bool
}

// Client reads frames from a single WebSocket connection.
type Client struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to url. header may carry authentication.
func Dial(ctx context.Context, url string, header http.Header, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn, logger: logging.OrDefault(logger)}, nil
}

// Stream calls fn for every frame until the server closes the connection,
// ctx is done, or fn returns an error. A normal closure returns nil.
func (c *Client) Stream(ctx context.Context, fn func(Frame) error) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		ev, ok := parser.ParseFrame(data)
		if !ok {
			c.logger.Debug("skipping unclassified frame", "bytes", len(data))
		}
		if err := fn(Frame{Raw: data, Event: ev, OK: ok}); err != nil {
			return err
		}
	}
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug("send close frame", "error", err)
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
