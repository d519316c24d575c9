package transport

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/tankbot/protocol"
)

// WSConfig holds websocket relay configuration.
type WSConfig struct {
	URL            string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// DefaultWSConfig returns sensible defaults
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:            url,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
	}
}

// WSConn talks to a relay that bridges the game server onto a websocket.
// Each text message carries one or more frames; commands go back as text
// messages. It is both a Source and a Sender.
type WSConn struct {
	config WSConfig
	conn   *websocket.Conn

	writeMu sync.Mutex
}

// DialWS connects to the relay.
func DialWS(ctx context.Context, config WSConfig) (*WSConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: config.ConnectTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &WSConn{config: config, conn: conn}, nil
}

// Serve reads messages until the relay closes the connection or ctx is
// done.
func (c *WSConn) Serve(ctx context.Context, out chan<- string) error {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		if c.config.ReadTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Connection closed normally
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		if err := ReadFrames(ctx, bytes.NewReader(message), out); err != nil {
			return err
		}
	}
}

func (c *WSConn) Send(ctx context.Context, cmd protocol.Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("send %s: invalid command", cmd)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(cmd.Frame())); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	return nil
}

// Close sends a close message and closes the connection.
func (c *WSConn) Close() error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
