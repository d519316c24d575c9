package status

import "sync/atomic"

// Metrics counts what a running client has seen and done.
type Metrics struct {
	Frames       int64
	DecodeErrors int64
	Violations   int64
	Skipped      int64
	Commands     int64
	SendErrors   int64
	Broadcasts   int64
}

func (m *Metrics) IncFrames()       { atomic.AddInt64(&m.Frames, 1) }
func (m *Metrics) IncDecodeErrors() { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncViolations()   { atomic.AddInt64(&m.Violations, 1) }
func (m *Metrics) IncSkipped()      { atomic.AddInt64(&m.Skipped, 1) }
func (m *Metrics) IncCommands()     { atomic.AddInt64(&m.Commands, 1) }
func (m *Metrics) IncSendErrors()   { atomic.AddInt64(&m.SendErrors, 1) }
func (m *Metrics) IncBroadcasts()   { atomic.AddInt64(&m.Broadcasts, 1) }

// Snapshot returns a read-only copy for HTTP output.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"frames":        atomic.LoadInt64(&m.Frames),
		"decode_errors": atomic.LoadInt64(&m.DecodeErrors),
		"violations":    atomic.LoadInt64(&m.Violations),
		"skipped":       atomic.LoadInt64(&m.Skipped),
		"commands":      atomic.LoadInt64(&m.Commands),
		"send_errors":   atomic.LoadInt64(&m.SendErrors),
		"broadcasts":    atomic.LoadInt64(&m.Broadcasts),
	}
}
