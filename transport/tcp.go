package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/brensch/tankbot/protocol"
)

const (
	// DefaultListenAddr is where the game server connects to deliver frames.
	DefaultListenAddr = "127.0.0.1:7000"
	// DefaultServerAddr is where commands are sent.
	DefaultServerAddr = "127.0.0.1:6000"
)

// TCPListener accepts the connections the game server opens for every
// message. Connections are read one at a time to EOF so frames keep their
// arrival order.
type TCPListener struct {
	ln          net.Listener
	readTimeout time.Duration
	logger      *slog.Logger
}

// Listen binds addr. A zero readTimeout means a connection may stay open
// indefinitely.
func Listen(ctx context.Context, addr string, readTimeout time.Duration, logger *slog.Logger) (*TCPListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TCPListener{ln: ln, readTimeout: readTimeout, logger: logger}, nil
}

// Addr returns the bound address.
func (l *TCPListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting connections.
func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// Serve accepts connections until ctx is done or the listener is closed.
// A connection that fails midway is logged and dropped; frames read from
// it before the failure are kept.
func (l *TCPListener) Serve(ctx context.Context, out chan<- string) error {
	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if err := l.handle(ctx, conn, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("connection read failed", "remote", conn.RemoteAddr().String(), "error", err)
		}
	}
}

func (l *TCPListener) handle(ctx context.Context, conn net.Conn, out chan<- string) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	if l.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	}
	return ReadFrames(ctx, conn, out)
}

// TCPSender opens a connection to the server for every command, as the
// server expects.
type TCPSender struct {
	Addr        string
	DialTimeout time.Duration
}

func (s *TCPSender) Send(ctx context.Context, cmd protocol.Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("send %s: invalid command", cmd)
	}
	d := net.Dialer{Timeout: s.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if _, err := io.WriteString(conn, cmd.Frame()); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	return nil
}
