// Package status exposes the client's latest world and counters over HTTP.
package status

import (
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/session"
)

// Board holds the latest snapshot for readers outside the fold goroutine.
// Snapshots are immutable, so handing out the pointer is safe.
type Board struct {
	mu        deadlock.RWMutex
	sessionID string
	world     *game.World
	seq       uint64
	frame     string
	lastErr   string
	updatedAt time.Time
}

func NewBoard(sessionID string) *Board {
	return &Board{sessionID: sessionID}
}

// Update records the outcome of a step.
func (b *Board) Update(step session.Step) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if step.World != nil {
		b.world = step.World
	}
	b.seq = step.Seq
	b.frame = step.Frame
	b.lastErr = ""
	if step.Err != nil {
		b.lastErr = step.Err.Error()
	}
	b.updatedAt = step.ReceivedAt
}

// World returns the latest snapshot, nil before the first initiation.
func (b *Board) World() *game.World {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.world
}

// View is the JSON form of the board.
type View struct {
	SessionID string     `json:"session_id"`
	Seq       uint64     `json:"seq"`
	Frame     string     `json:"frame,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
	World     *WorldView `json:"world,omitempty"`
}

type WorldView struct {
	Player    int          `json:"player"`
	Bricks    []BrickView  `json:"bricks"`
	Stones    []game.Point `json:"stones"`
	Waters    []game.Point `json:"waters"`
	Tanks     []TankView   `json:"tanks"`
	Lifepacks []PickupView `json:"lifepacks"`
	Coinpacks []PickupView `json:"coinpacks"`
}

type BrickView struct {
	game.Point
	Health int `json:"health"`
}

type TankView struct {
	game.Point
	Player     int    `json:"player"`
	Facing     string `json:"facing"`
	Health     int    `json:"health"`
	Coins      int    `json:"coins"`
	Points     int    `json:"points"`
	Shot       bool   `json:"shot"`
	Controlled bool   `json:"controlled"`
	// Ahead is what occupies the cell the tank faces: a kind name,
	// "empty", or "edge" at the border.
	Ahead string `json:"ahead"`
}

type PickupView struct {
	game.Point
	Ticks  int `json:"ticks"`
	Amount int `json:"amount"`
}

// View returns the current board as plain data.
func (b *Board) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v := View{
		SessionID: b.sessionID,
		Seq:       b.seq,
		Frame:     b.frame,
		Error:     b.lastErr,
		UpdatedAt: b.updatedAt,
	}
	if b.world != nil {
		v.World = worldView(b.world)
	}
	return v
}

func worldView(w *game.World) *WorldView {
	v := &WorldView{
		Player:    w.PlayerNumber,
		Bricks:    make([]BrickView, 0, len(w.BrickWalls)),
		Stones:    make([]game.Point, 0, len(w.StoneWalls)),
		Waters:    make([]game.Point, 0, len(w.Waters)),
		Tanks:     make([]TankView, 0, len(w.Tanks)),
		Lifepacks: make([]PickupView, 0, len(w.Lifepacks)),
		Coinpacks: make([]PickupView, 0, len(w.Coinpacks)),
	}
	for _, b := range w.BrickWalls {
		v.Bricks = append(v.Bricks, BrickView{Point: b.Point, Health: b.Health})
	}
	for _, s := range w.StoneWalls {
		v.Stones = append(v.Stones, s.Point)
	}
	for _, wt := range w.Waters {
		v.Waters = append(v.Waters, wt.Point)
	}
	for _, t := range w.Tanks {
		v.Tanks = append(v.Tanks, tankView(w, t))
	}
	for _, l := range w.Lifepacks {
		v.Lifepacks = append(v.Lifepacks, PickupView{Point: l.Point, Ticks: l.Ticks, Amount: l.Health})
	}
	for _, c := range w.Coinpacks {
		v.Coinpacks = append(v.Coinpacks, PickupView{Point: c.Point, Ticks: c.Ticks, Amount: c.Value})
	}
	return v
}

func tankView(w *game.World, t game.Tank) TankView {
	return TankView{
		Point:      t.Point,
		Player:     t.Player,
		Facing:     t.Facing.String(),
		Health:     t.Health,
		Coins:      t.Coins,
		Points:     t.Points,
		Shot:       t.Shot,
		Controlled: t.Controlled,
		Ahead:      aheadName(w, t),
	}
}

// aheadName names the occupant of the cell in front of t.
func aheadName(w *game.World, t game.Tank) string {
	o, ok := w.Ahead(t)
	switch {
	case !ok:
		return "edge"
	case o == nil:
		return "empty"
	}
	return o.Kind().String()
}

// Tank returns the view of one player's tank.
func (b *Board) Tank(player int) (TankView, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.world == nil {
		return TankView{}, false
	}
	t, ok := b.world.TankFor(player)
	if !ok {
		return TankView{}, false
	}
	return tankView(b.world, t), true
}
