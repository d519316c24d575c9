package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/rules"
	"github.com/brensch/tankbot/session"
)

func sampleWorld() *game.World {
	return game.NewWorld(1, game.Entities{
		BrickWalls: []game.BrickWall{{Point: game.Pt(1, 1), Health: 3}},
		StoneWalls: []game.StoneWall{{Point: game.Pt(2, 2)}},
		Waters:     []game.Water{{Point: game.Pt(3, 3)}},
		Tanks: []game.Tank{
			{Point: game.Pt(0, 5), Health: 80, Facing: game.West, Coins: 10, Points: 4, Player: 1, Controlled: true},
			{Point: game.Pt(9, 9), Health: 100, Facing: game.South, Player: 0, Shot: true},
		},
		Lifepacks: []game.Lifepack{{Point: game.Pt(5, 5), Health: game.DefaultLifepackHealth, Ticks: 7}},
		Coinpacks: []game.Coinpack{{Point: game.Pt(6, 6), Value: 700, Ticks: 3}},
	})
}

func TestSnapshot_PreservesWorld(t *testing.T) {
	w := sampleWorld()
	b, err := EncodeSnapshot(w)
	require.NoError(t, err)

	got, err := DecodeSnapshot(b)
	require.NoError(t, err)
	if !got.Equal(w) {
		t.Fatalf("decoded snapshot differs:\n got=%+v\nwant=%+v", got.Entities, w.Entities)
	}
	assert.Equal(t, game.KindTank, got.At(game.Pt(0, 5)).Kind())

	empty, err := DecodeSnapshot(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = DecodeSnapshot([]byte{0xc1})
	assert.Error(t, err)
}

func recordSession(t *testing.T, dir string, flushRows int) (*Recorder, *session.Session) {
	t.Helper()
	s := session.New(rules.Transitioner{}, session.NewRandomPolicy(7))
	rec, err := NewRecorder(dir, s.ID, flushRows)
	require.NoError(t, err)

	s.Open()
	require.NoError(t, rec.Record(s.History()[0]))
	for _, frame := range []string{
		"I:P1:0,0;1,1:2,2:3,3#",
		"S:P1;0,5;0#",
		"L:5,5:3#",
		"G:P1;0,6;2;0;100;0;0:0,0,2#",
		"S:P1;0,0#",
	} {
		step, _ := s.Step(frame)
		require.NoError(t, rec.Record(step))
	}
	return rec, s
}

func TestRecorder_WritesAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	rec, s := recordSession(t, dir, 4)

	assert.Equal(t, 2, rec.Buffered())
	_, err := rec.Flush()
	require.NoError(t, err)
	paths, n := rec.Written()
	require.Len(t, paths, 2)
	assert.Equal(t, 6, n)

	var rows []FrameRow
	for _, p := range paths {
		batch, err := ReadFrames(p)
		require.NoError(t, err)
		rows = append(rows, batch...)
	}
	require.Len(t, rows, 6)

	for i, r := range rows {
		assert.Equal(t, s.ID, r.SessionID)
		assert.Equal(t, int64(i), r.Seq)
		assert.Equal(t, SnapshotFormat, r.StateFormat)
	}
	assert.Equal(t, "JOIN", rows[0].Command)
	assert.Equal(t, "initiation", rows[1].Kind)
	assert.NotEmpty(t, rows[4].Command, "broadcast should carry a move")
	assert.NotEmpty(t, rows[5].Error)

	last, err := DecodeSnapshot(rows[4].State)
	require.NoError(t, err)
	assert.True(t, last.Equal(s.World()))

	_, err = os.Stat(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries, "tmp dir should be empty after renames")

	listed, err := ListRecordings(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, paths, listed)
}

func TestRecorder_EmptyFlush(t *testing.T) {
	rec, err := NewRecorder(t.TempDir(), uuid.NewString(), 0)
	require.NoError(t, err)
	path, err := rec.Flush()
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = NewRecorder("", "x", 1)
	assert.Error(t, err)
}

func TestSessionLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sessions.log")
	l, err := OpenSessionLog(path)
	require.NoError(t, err)

	a, b := uuid.NewString(), uuid.NewString()
	require.NoError(t, l.Add(a, "batch_1.parquet", "batch_2.parquet"))
	require.NoError(t, l.Add(b, "batch_3.parquet"))
	require.NoError(t, l.Add(a, "batch_2.parquet"))
	assert.Error(t, l.Add("", "batch_4.parquet"))
	require.NoError(t, l.Close())

	// simulate a crash mid-line
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("partial")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l, err = OpenSessionLog(path)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, []string{a, b}, l.Sessions())
	assert.Equal(t, []string{"batch_1.parquet", "batch_2.parquet"}, l.Batches(a))
	assert.True(t, l.Has(b))
	assert.False(t, l.Has("partial"))
}

func TestRecorder_ClearsStaleTmp(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	require.NoError(t, os.MkdirAll(tmp, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "batch_1_0000.parquet.tmp"), []byte("half"), 0o644))

	rec, err := NewRecorder(dir, uuid.NewString(), 1)
	require.NoError(t, err)
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Back to back flushes within one clock tick still get distinct names.
	s := session.New(rules.Transitioner{}, nil)
	for _, frame := range []string{"I:P0:1,1:2,2:3,3#", "L:5,5:3#", "C:6,6:9:100#"} {
		step, err := s.Step(frame)
		require.NoError(t, err)
		require.NoError(t, rec.Record(step))
	}
	paths, n := rec.Written()
	assert.Equal(t, 3, n)
	listed, err := ListRecordings(dir)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
	assert.ElementsMatch(t, paths, listed)
}
