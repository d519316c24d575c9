package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/session"
)

func testWorld() *game.World {
	return game.NewWorld(1, game.Entities{
		BrickWalls: []game.BrickWall{{Point: game.Pt(1, 0), Health: 3}},
		StoneWalls: []game.StoneWall{{Point: game.Pt(2, 0)}},
		Waters:     []game.Water{{Point: game.Pt(3, 0)}},
		Tanks:      []game.Tank{{Point: game.Pt(0, 0), Facing: game.East, Health: 100, Player: 1, Controlled: true}},
		Lifepacks:  []game.Lifepack{{Point: game.Pt(4, 0), Health: 5, Ticks: 2}},
		Coinpacks:  []game.Coinpack{{Point: game.Pt(5, 0), Value: 300, Ticks: 9}},
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_BeforeFirstWorld(t *testing.T) {
	r := SetupRouter(NewBoard("s1"), &Metrics{})

	assert.Equal(t, http.StatusOK, get(t, r, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, r, "/world").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, r, "/grid").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/tanks/0").Code)
}

func TestRouter_World(t *testing.T) {
	board := NewBoard("s1")
	metrics := &Metrics{}
	r := SetupRouter(board, metrics)

	board.Update(session.Step{Seq: 4, Frame: "G:...#", World: testWorld()})
	board.Update(session.Step{Seq: 5, Frame: "bad#", Err: errors.New("unknown short code")})
	metrics.IncFrames()
	metrics.IncFrames()
	metrics.IncDecodeErrors()

	rec := get(t, r, "/world")
	require.Equal(t, http.StatusOK, rec.Code)
	var v View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "s1", v.SessionID)
	assert.Equal(t, uint64(5), v.Seq)
	assert.Equal(t, "unknown short code", v.Error)
	require.NotNil(t, v.World)
	require.Len(t, v.World.Tanks, 1)
	assert.Equal(t, "east", v.World.Tanks[0].Facing)
	assert.True(t, v.World.Tanks[0].Controlled)
	assert.Equal(t, 300, v.World.Coinpacks[0].Amount)

	rec = get(t, r, "/grid")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, game.GridSize)
	assert.Equal(t, ">3#~+$", lines[0][:6])

	assert.Equal(t, "brick", v.World.Tanks[0].Ahead)

	rec = get(t, r, "/tanks/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var tank TankView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tank))
	assert.Equal(t, 1, tank.Player)
	assert.Equal(t, 100, tank.Health)
	assert.Equal(t, "brick", tank.Ahead)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/tanks/3").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/tanks/p1").Code)

	rec = get(t, r, "/metrics")
	var m map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, int64(2), m["frames"])
	assert.Equal(t, int64(1), m["decode_errors"])
}

func TestBoard_ConcurrentAccess(t *testing.T) {
	board := NewBoard("s1")
	w := testWorld()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			board.Update(session.Step{Seq: uint64(i), World: w})
		}(i)
		go func() {
			defer wg.Done()
			_ = board.View()
		}()
	}
	wg.Wait()
	assert.Same(t, w, board.World())
}
