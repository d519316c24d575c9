package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// SessionLog is an append-only index of recorded sessions. Each line maps a
// session id to one batch file:
//
//	<session_id>\t<batch path>\n
//
// A partial final line left by a crash is ignored on the next open.
type SessionLog struct {
	mu       sync.RWMutex
	file     *os.File
	sessions map[string][]string
	order    []string
}

func OpenSessionLog(path string) (*SessionLog, error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}
	l := &SessionLog{sessions: make(map[string][]string)}

	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			id, batch, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "\t")
			if !ok || id == "" || batch == "" {
				continue
			}
			l.note(id, batch)
		}
		_ = f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = file
	return l, nil
}

func (l *SessionLog) note(id, batch string) {
	prev, seen := l.sessions[id]
	if !seen {
		l.order = append(l.order, id)
	}
	if !slices.Contains(prev, batch) {
		l.sessions[id] = append(prev, batch)
	}
}

func (l *SessionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Add records that batches belong to session id and syncs once.
func (l *SessionLog) Add(id string, batches ...string) error {
	if id == "" {
		return fmt.Errorf("session id is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("log file is closed")
	}

	added := 0
	for _, batch := range batches {
		if batch == "" || slices.Contains(l.sessions[id], batch) {
			continue
		}
		if _, err := l.file.WriteString(id + "\t" + batch + "\n"); err != nil {
			return fmt.Errorf("append log: %w", err)
		}
		l.note(id, batch)
		added++
	}
	if added == 0 {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}

// Batches returns the batch files recorded for id, in the order written.
func (l *SessionLog) Batches(id string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.sessions[id])
}

// Sessions returns every recorded session id, oldest first.
func (l *SessionLog) Sessions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.order)
}

func (l *SessionLog) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.sessions[id]
	return ok
}
