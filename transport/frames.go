// Package transport moves frames and commands between the game server and
// the client. It owns every socket, buffer and timeout; the decoder only
// ever sees one complete frame at a time.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/brensch/tankbot/protocol"
)

// maxFrameSize bounds a single frame. Initiation frames for a 20x20 arena
// are a few kilobytes at most.
const maxFrameSize = 64 * 1024

// SplitFrames is a bufio.SplitFunc that cuts a byte stream after every
// frame terminator. The server sometimes coalesces replies sent in quick
// succession, e.g. TOO_QUICK#TOO_QUICK#, so one read may hold many frames.
// Text left over at EOF without a terminator is returned as a final frame.
func SplitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, protocol.Terminator); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Sender delivers a command to the game server.
type Sender interface {
	Send(ctx context.Context, cmd protocol.Command) error
}

// Source produces frames in arrival order until ctx is done or the
// underlying connection ends.
type Source interface {
	Serve(ctx context.Context, out chan<- string) error
}

// ReadFrames splits r into frames and sends each non-blank one to out.
func ReadFrames(ctx context.Context, r io.Reader, out chan<- string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrameSize)
	sc.Split(SplitFrames)
	for sc.Scan() {
		frame := sc.Text()
		if protocol.StripTerminator(frame) == "" {
			continue
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.Err()
}
