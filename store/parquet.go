// Package store records sessions to disk so they can be replayed offline.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/brensch/tankbot/session"
)

const schemaName = "tank_frame_v1"

// FrameRow is one received frame together with the snapshot it produced.
//
// Rows for the opening step carry no frame. Rows whose frame failed to
// decode or apply carry the error text and the unchanged snapshot.
type FrameRow struct {
	SessionID  string `parquet:"session_id,dict"`
	Seq        int64  `parquet:"seq"`
	ReceivedAt int64  `parquet:"received_at_ns"`
	Frame      string `parquet:"frame"`
	Kind       string `parquet:"kind,dict"`
	Error      string `parquet:"error"`
	// Command is the command sent in response, empty if none.
	Command     string `parquet:"command,dict"`
	StateFormat string `parquet:"state_format,dict"`
	State       []byte `parquet:"state,optional,zstd"`
}

// RowFromStep converts a session step into a row.
func RowFromStep(sessionID string, step session.Step) (FrameRow, error) {
	state, err := EncodeSnapshot(step.World)
	if err != nil {
		return FrameRow{}, err
	}
	row := FrameRow{
		SessionID:   sessionID,
		Seq:         int64(step.Seq),
		ReceivedAt:  step.ReceivedAt.UnixNano(),
		Frame:       step.Frame,
		StateFormat: SnapshotFormat,
		State:       state,
	}
	if step.Message != nil {
		row.Kind = step.Message.Kind().String()
	}
	if step.Err != nil {
		row.Error = step.Err.Error()
	}
	if step.HasCommand {
		row.Command = step.Command.String()
	}
	return row, nil
}

// ReadFrames reads every row of a recording file in stored order.
func ReadFrames(path string) ([]FrameRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[FrameRow](pf)
	defer reader.Close()

	rows := make([]FrameRow, 0, reader.NumRows())
	buf := make([]FrameRow, 256)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	return rows, nil
}

// ListRecordings returns the batch files in dir, oldest first.
func ListRecordings(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "batch_*.parquet"))
	if err != nil {
		return nil, err
	}
	// batch_<unix nanos> names sort chronologically for any realistic clock.
	return matches, nil
}
