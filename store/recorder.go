package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/tankbot/session"
)

// Recorder buffers the steps of one session and flushes them to parquet
// batches. It is safe for concurrent use.
//
// Batches are written under outDir/tmp and renamed into outDir once
// complete, so ListRecordings never returns a partial file.
type Recorder struct {
	outDir    string
	tmpDir    string
	sessionID string
	flushRows int

	mu      sync.Mutex
	buf     []FrameRow
	written []string
	rows    int
}

// NewRecorder writes batches to outDir once flushRows rows are buffered.
// Temp files left behind by an earlier crash are removed.
func NewRecorder(outDir, sessionID string, flushRows int) (*Recorder, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	if flushRows <= 0 {
		flushRows = 1000
	}
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}
	stale, err := filepath.Glob(filepath.Join(tmpDir, "*.tmp"))
	if err != nil {
		return nil, err
	}
	for _, p := range stale {
		_ = os.Remove(p)
	}
	return &Recorder{
		outDir:    outDir,
		tmpDir:    tmpDir,
		sessionID: sessionID,
		flushRows: flushRows,
		buf:       make([]FrameRow, 0, flushRows),
	}, nil
}

// Record adds step to the buffer, flushing if it is full.
func (r *Recorder) Record(step session.Step) error {
	row, err := RowFromStep(r.sessionID, step)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, row)
	if len(r.buf) >= r.flushRows {
		_, err := r.flushLocked()
		return err
	}
	return nil
}

// Flush writes any buffered rows. It returns the path written, or "" if
// nothing was buffered.
func (r *Recorder) Flush() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

// flushLocked keeps the buffer when the write fails so the next flush
// retries the same rows.
func (r *Recorder) flushLocked() (string, error) {
	if len(r.buf) == 0 {
		return "", nil
	}

	name := fmt.Sprintf("batch_%d_%04d.parquet", time.Now().UnixNano(), len(r.written))
	tmpPath := filepath.Join(r.tmpDir, name+".tmp")
	if err := r.writeTmp(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	path := filepath.Join(r.outDir, name)
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish %s: %w", name, err)
	}

	r.written = append(r.written, path)
	r.rows += len(r.buf)
	r.buf = r.buf[:0]
	return path, nil
}

func (r *Recorder) writeTmp(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[FrameRow](f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("state"),
		parquet.KeyValueMetadata("schema", schemaName),
		parquet.KeyValueMetadata("session_id", r.sessionID),
	)
	if _, err := w.Write(r.buf); err != nil {
		return fmt.Errorf("write %d rows: %w", len(r.buf), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync batch: %w", err)
	}
	return f.Close()
}

// Written returns the batch files written so far and their total rows.
func (r *Recorder) Written() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.written...), r.rows
}

// Buffered returns the number of rows not yet flushed.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}
