package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/protocol"
	"github.com/brensch/tankbot/rules"
)

var opening = []string{
	"I:P1:0,0;1,1:2,2:3,3#",
	"S:P1;0,5;0#",
	"G:P1;0,5;0;0;100;0;0:0,0,1#",
}

func TestSession_FoldsInOrder(t *testing.T) {
	s := New(rules.Transitioner{}, NewRandomPolicy(1))

	cmd, ok := s.Open()
	require.True(t, ok)
	assert.Equal(t, protocol.CommandJoin, cmd)

	for _, frame := range opening {
		step, err := s.Step(frame)
		require.NoError(t, err, frame)
		t.Logf("seq=%d frame=%s command=%s/%v", step.Seq, frame, step.Command, step.HasCommand)
	}

	w := s.World()
	require.NotNil(t, w)
	tank, ok := w.ControlledTank()
	require.True(t, ok)
	assert.Equal(t, game.Pt(0, 5), tank.Point)
	assert.Equal(t, game.MaxBrickHealth-1, w.BrickWalls[0].Health)

	history := s.History()
	require.Len(t, history, 4)
	assert.Nil(t, history[0].Message)
	assert.False(t, history[1].HasCommand, "no command expected after initiation")
	assert.False(t, history[2].HasCommand, "no command expected after join")
	assert.True(t, history[3].HasCommand, "broadcast should produce a move")
	assert.Contains(t, protocol.Moves, history[3].Command)
}

func TestSession_DecodeErrorLeavesWorld(t *testing.T) {
	s := New(rules.Transitioner{}, nil)
	_, err := s.Step(opening[0])
	require.NoError(t, err)
	before := s.World()

	step, err := s.Step("S:P1;0,0#")
	var de *protocol.DecodeError
	require.True(t, errors.As(err, &de))
	assert.ErrorIs(t, step.Err, protocol.ErrArity)
	assert.Same(t, before, s.World())
	assert.Len(t, s.History(), 1)
}

func TestSession_ViolationLeavesWorld(t *testing.T) {
	s := New(rules.Transitioner{Policy: rules.Abort}, nil)
	for _, frame := range opening[:2] {
		_, err := s.Step(frame)
		require.NoError(t, err)
	}
	before := s.World()

	_, err := s.Step("G:P1;0,5;0;0;100;0;0:9,9,1#")
	assert.ErrorIs(t, err, rules.ErrNoBrick)
	assert.Same(t, before, s.World())
}

func TestSession_PolicyCannotAliasHistory(t *testing.T) {
	var kept [][]Step
	policy := PolicyFunc(func(history []Step, _ *game.World, _ protocol.Message) (protocol.Command, bool) {
		if len(history) > 0 {
			history[0].Frame = "tampered"
			history = append(history, Step{Frame: "extra"})
		}
		kept = append(kept, history)
		return 0, false
	})
	s := New(rules.Transitioner{}, policy)
	s.Open()
	for _, frame := range opening {
		_, err := s.Step(frame)
		require.NoError(t, err, frame)
	}

	history := s.History()
	require.Len(t, history, 4)
	assert.Empty(t, history[0].Frame)
	for i, h := range history[1:] {
		assert.Equal(t, opening[i], h.Frame)
	}
	require.Len(t, kept, 4)
}

func TestRandomPolicy_Deterministic(t *testing.T) {
	a, b := NewRandomPolicy(42), NewRandomPolicy(42)
	history := []Step{{}}
	msg := protocol.Broadcast{}

	for i := 0; i < 50; i++ {
		ca, oka := a.Next(history, nil, msg)
		cb, okb := b.Next(history, nil, msg)
		require.True(t, oka && okb)
		if ca != cb {
			t.Fatalf("draw %d: got=%s want=%s", i, ca, cb)
		}
		assert.Contains(t, protocol.Moves, ca)
	}

	_, ok := a.Next(history, nil, protocol.LifepackAppeared{})
	assert.False(t, ok)
}

// streamFrames is an initiation, a join and n lifepack appearances whose
// ticks equal their position so any reordering is visible.
func streamFrames(n int) []string {
	frames := append([]string{}, opening[:2]...)
	for i := 0; i < n; i++ {
		frames = append(frames, fmt.Sprintf("L:%d,%d:%d#", 5+i%10, 6+(i/10)%10, i+1))
	}
	return frames
}

func TestPipeline_PreservesOrder(t *testing.T) {
	frames := streamFrames(100)

	// sequential reference fold
	ref := New(rules.Transitioner{}, nil)
	for _, f := range frames {
		_, err := ref.Step(f)
		require.NoError(t, err)
	}

	s := New(rules.Transitioner{}, nil)
	p := &Pipeline{Session: s, Workers: 8}
	in := make(chan string)
	go func() {
		defer close(in)
		for _, f := range frames {
			in <- f
		}
	}()

	var seen []uint64
	err := p.Run(context.Background(), in, func(step Step) error {
		assert.NoError(t, step.Err)
		seen = append(seen, step.Seq)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, seen, len(frames))
	for i, seq := range seen {
		if seq != uint64(i) {
			t.Fatalf("step %d has seq=%d want=%d", i, seq, i)
		}
	}
	if !s.World().Equal(ref.World()) {
		t.Fatalf("pipeline world differs from sequential fold")
	}
	for i, l := range s.World().Lifepacks {
		assert.Equal(t, i+1, l.Ticks)
	}
}

func TestPipeline_ReportsBadFramesAndContinues(t *testing.T) {
	s := New(rules.Transitioner{}, nil)
	p := &Pipeline{Session: s, Workers: 2}
	in := make(chan string, 4)
	in <- opening[0]
	in <- "HELLO#"
	in <- opening[1]
	close(in)

	var errs []error
	err := p.Run(context.Background(), in, func(step Step) error {
		if step.Err != nil {
			errs = append(errs, step.Err)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], protocol.ErrUnknownShortCode)
	_, ok := s.World().ControlledTank()
	assert.True(t, ok)
}

func TestPipeline_StopsOnOutError(t *testing.T) {
	s := New(rules.Transitioner{}, nil)
	p := &Pipeline{Session: s}
	frames := streamFrames(1000)
	in := make(chan string, len(frames))
	for _, f := range frames {
		in <- f
	}
	stop := errors.New("stop")

	var n int
	err := p.Run(context.Background(), in, func(Step) error {
		n++
		if n == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, n)
}

func TestPipeline_StopsOnCancel(t *testing.T) {
	s := New(rules.Transitioner{}, nil)
	p := &Pipeline{Session: s}
	in := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, in, func(Step) error { return nil })
	}()
	in <- opening[0]
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}
