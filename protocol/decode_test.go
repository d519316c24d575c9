package protocol

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/tankbot/game"
)

func TestStripTerminator(t *testing.T) {
	cases := map[string]string{
		"S:P1;0,0;0#":     "S:P1;0,0;0",
		"  OBSTACLE;25#\n": "OBSTACLE;25",
		"TOO_QUICK":       "TOO_QUICK",
		"PITFALL # ":      "PITFALL",
		"##":              "",
		"":                "",
	}
	for in, want := range cases {
		got := StripTerminator(in)
		assert.Equal(t, want, got, "StripTerminator(%q)", in)
		assert.Equal(t, got, StripTerminator(got), "not idempotent for %q", in)
	}
}

func TestSplitLevel(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitMiddle(" a ;; b;c ;"))
	assert.Equal(t, []string{"1", "2"}, SplitInner("1, 2"))
	assert.Equal(t, []string{"I", "P1", "0,0"}, SplitOuter("I:P1::0,0"))
	assert.Empty(t, SplitOuter(""))
}

func TestShortCodeToIdentifier(t *testing.T) {
	cases := map[string]string{
		"OBSTACLE":               "Obstacle",
		"CELL_OCCUPIED":          "CellOccupied",
		"GAME_NOT_STARTED_YET":   "GameNotStartedYet",
		"NOT_A_VALID_CONTESTANT": "NotAValidContestant",
		"__TOO__QUICK_":          "TooQuick",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ShortCodeToIdentifier(in), in)
	}
}

func TestDecode_Initiation(t *testing.T) {
	msg, err := Decode("I:P1:0,0;1,1:2,2:3,3#")
	require.NoError(t, err)
	assert.Equal(t, Initiation{
		PlayerNumber: 1,
		Bricks:       []game.Point{game.Pt(0, 0), game.Pt(1, 1)},
		Stones:       []game.Point{game.Pt(2, 2)},
		Waters:       []game.Point{game.Pt(3, 3)},
	}, msg)
	assert.Equal(t, KindInitiation, msg.Kind())
}

func TestDecode_JoinShapes(t *testing.T) {
	want := Join{Placements: []Placement{{PlayerNumber: 1, Location: game.Pt(0, 0), Facing: game.North}}}

	for _, frame := range []string{"S:P1;0,0;0#", "S:P1:0,0:0#", " S : P1 ; 0,0 ; 0 #"} {
		msg, err := Decode(frame)
		require.NoError(t, err, frame)
		assert.Equal(t, want, msg, frame)
	}
}

func TestDecode_JoinSeveralPlayers(t *testing.T) {
	msg, err := Decode("S:P0;0,0;0:P1;0,19;2#")
	require.NoError(t, err)
	assert.Equal(t, Join{Placements: []Placement{
		{PlayerNumber: 0, Location: game.Pt(0, 0), Facing: game.North},
		{PlayerNumber: 1, Location: game.Pt(0, 19), Facing: game.South},
	}}, msg)
}

func TestDecode_Broadcast(t *testing.T) {
	msg, err := Decode("G:P1;3,4;1;0;100;50;10:P2;5,6;3;1;80;0;7:3,4,1;5,6,4#")
	require.NoError(t, err)
	assert.Equal(t, Broadcast{
		Tanks: []TankDetails{
			{PlayerNumber: 1, Location: game.Pt(3, 4), Facing: game.East, Health: 100, Coins: 50, Points: 10},
			{PlayerNumber: 2, Location: game.Pt(5, 6), Facing: game.West, Shot: true, Health: 80, Points: 7},
		},
		Damage: []BrickDamage{
			{Location: game.Pt(3, 4), DamageLevel: 1},
			{Location: game.Pt(5, 6), DamageLevel: 4},
		},
	}, msg)
}

func TestDecode_BroadcastWithoutDamage(t *testing.T) {
	msg, err := Decode("G:P1;3,4;1;0;100;50;10#")
	require.NoError(t, err)
	b := msg.(Broadcast)
	assert.Len(t, b.Tanks, 1)
	assert.Empty(t, b.Damage)
}

func TestDecode_Pickups(t *testing.T) {
	msg, err := Decode("L:5,5:12#")
	require.NoError(t, err)
	assert.Equal(t, LifepackAppeared{Location: game.Pt(5, 5), Ticks: 12}, msg)

	msg, err = Decode("C:5,6:12:700#")
	require.NoError(t, err)
	assert.Equal(t, CoinpackAppeared{Location: game.Pt(5, 6), Ticks: 12, Value: 700}, msg)
}

func TestDecode_ShortCodes(t *testing.T) {
	cases := []struct {
		frame string
		want  Message
	}{
		{"OBSTACLE;25#", CommandFailed{Reason: Obstacle}},
		{"OBSTACLE#", CommandFailed{Reason: Obstacle}},
		{"CELL_OCCUPIED#", CommandFailed{Reason: CellOccupied}},
		{"TOO_QUICK#", CommandFailed{Reason: TooQuick}},
		{"GAME_NOT_STARTED_YET#", CommandFailed{Reason: GameNotStartedYet}},
		{"PLAYERS_FULL#", JoinFailed{Reason: PlayersFull}},
		{"ALREADY_ADDED#", JoinFailed{Reason: AlreadyAdded}},
		{"GAME_ALREADY_STARTED#", JoinFailed{Reason: GameAlreadyStarted}},
	}
	for _, tc := range cases {
		msg, err := Decode(tc.frame)
		require.NoError(t, err, tc.frame)
		assert.Equal(t, tc.want, msg, tc.frame)
	}
	assert.Equal(t, "Obstacle", Obstacle.String())
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		frame string
		want  error
	}{
		{"S:P1;0,0#", ErrArity},
		{"S:P1:0,0#", ErrArity},
		{"S:P1;0;0#", ErrArity},
		{"S:X1;0,0;0#", ErrNumber},
		{"S:P1;0,a;0#", ErrNumber},
		{"S:P1;0,0;4#", ErrRange},
		{"S:P-1;0,0;0#", ErrRange},
		{"I:P1:0,0:2,2#", ErrArity},
		{"I:P1:0,0:2,2:3#", ErrArity},
		{"G:P1;3,4;1;2;100;50;10#", ErrRange},
		{"G:P1;3,4;1;0;100;50#", ErrArity},
		{"G:P1;3,4;1;0;100;50;10:3,4,5#", ErrRange},
		{"G:P1;3,4;1;0;100;50;10:3,4#", ErrArity},
		{"L:5,5#", ErrArity},
		{"L:5,5:x#", ErrNumber},
		{"C:5,5:1#", ErrArity},
		{"X:1,1:2#", ErrUnknownTag},
		{"G:#", ErrArity},
		{"HELLO_THERE#", ErrUnknownShortCode},
		{"obstacle#", ErrUnknownShortCode},
		{"#", ErrEmptyFrame},
		{";#", ErrEmptyFrame},
		{";25#", ErrUnknownShortCode},
	}
	for _, tc := range cases {
		msg, err := Decode(tc.frame)
		assert.Nil(t, msg, tc.frame)
		require.Error(t, err, tc.frame)
		assert.ErrorIs(t, err, tc.want, tc.frame)

		var de *DecodeError
		require.True(t, errors.As(err, &de), tc.frame)
		assert.Equal(t, tc.frame, de.Frame)
	}
}

func TestDecode_StripIsIdempotent(t *testing.T) {
	for _, frame := range []string{"I:P1:0,0;1,1:2,2:3,3#", "OBSTACLE;25#", "C:5,6:12:700#"} {
		once, err := Decode(StripTerminator(frame))
		require.NoError(t, err)
		twice, err := Decode(StripTerminator(StripTerminator(frame)))
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestDecode_Concurrent(t *testing.T) {
	frames := []string{"I:P1:0,0;1,1:2,2:3,3#", "S:P1;0,0;0#", "L:5,5:12#", "OBSTACLE;25#"}
	want := make([]Message, len(frames))
	for i, f := range frames {
		m, err := Decode(f)
		require.NoError(t, err)
		want[i] = m
	}

	var wg sync.WaitGroup
	for n := 0; n < 32; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			i := n % len(frames)
			m, err := Decode(frames[i])
			assert.NoError(t, err)
			assert.Equal(t, want[i], m)
		}(n)
	}
	wg.Wait()
}

func TestCommandFrame(t *testing.T) {
	assert.Equal(t, "JOIN#", CommandJoin.Frame())
	assert.Equal(t, "SHOOT#", CommandShoot.Frame())

	c, err := ParseCommand("left#")
	require.NoError(t, err)
	assert.Equal(t, CommandLeft, c)

	_, err = ParseCommand("jump")
	assert.Error(t, err)
}
