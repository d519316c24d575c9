// Package logging configures the client's slog output.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FrameHandler is a slog.Handler that writes one JSON object per record.
// With Indent set each object is pretty printed, which is easier to read
// when following a session frame by frame in a terminal.
type FrameHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool
	indent    bool

	attrs  []slog.Attr
	groups []string
}

// NewFrameHandler returns a handler writing to w. A nil opts logs at Info.
func NewFrameHandler(w io.Writer, indent bool, opts *slog.HandlerOptions) *FrameHandler {
	h := &FrameHandler{
		w:      w,
		mu:     &sync.Mutex{},
		level:  slog.LevelInfo,
		indent: indent,
	}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.addSource = opts.AddSource
	}
	return h
}

func (h *FrameHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *FrameHandler) Handle(_ context.Context, r slog.Record) error {
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}
	payload := map[string]any{
		"time":  when.Format(time.RFC3339Nano),
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	if h.addSource {
		if src := sourceFromPC(r.PC); src != "" {
			payload["source"] = src
		}
	}

	dst := payload
	for _, g := range h.groups {
		child := map[string]any{}
		dst[g] = child
		dst = child
	}
	for _, a := range h.attrs {
		putAttr(dst, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		putAttr(dst, a)
		return true
	})

	var (
		b   []byte
		err error
	)
	if h.indent {
		b, err = json.MarshalIndent(payload, "", "  ")
	} else {
		b, err = json.Marshal(payload)
	}
	if err != nil {
		b = fmt.Appendf(nil, `{"time":%s,"level":%s,"msg":%s,"marshal_error":%s}`,
			strconv.Quote(payload["time"].(string)), strconv.Quote(r.Level.String()),
			strconv.Quote(r.Message), strconv.Quote(err.Error()))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(b, '\n'))
	return err
}

func (h *FrameHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *FrameHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func putAttr(dst map[string]any, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	if v.Kind() == slog.KindGroup {
		target := dst
		if a.Key != "" {
			target = map[string]any{}
			dst[a.Key] = target
		}
		for _, ga := range v.Group() {
			putAttr(target, ga)
		}
		return
	}
	dst[a.Key] = plain(v)
}

// plain converts a slog value to something encoding/json renders sensibly.
// Errors and Stringers are rendered as text rather than as empty objects.
func plain(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	}
	switch x := v.Any().(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return x
	}
}

func sourceFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
