// Package game defines the world model reconstructed from the server's frames.
//
// A World is an immutable snapshot. The grid is never stored independently:
// it is projected from the entity collections whenever a World is built, so
// the two can not drift apart. Snapshots own their collections; NewWorld and
// Clone copy every slice they are given.
package game

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrOffGrid         = errors.New("entity outside the grid")
	ErrOverlap         = errors.New("two entities share a cell")
	ErrDuplicatePlayer = errors.New("more than one tank for a player")
	ErrGridMismatch    = errors.New("grid does not match entity collections")
)

// Entities holds the authoritative entity collections of a World.
type Entities struct {
	BrickWalls []BrickWall
	StoneWalls []StoneWall
	Waters     []Water
	Tanks      []Tank
	Lifepacks  []Lifepack
	Coinpacks  []Coinpack
}

// Clone performs a deep copy of the collections.
func (e Entities) Clone() Entities {
	return Entities{
		BrickWalls: slices.Clone(e.BrickWalls),
		StoneWalls: slices.Clone(e.StoneWalls),
		Waters:     slices.Clone(e.Waters),
		Tanks:      slices.Clone(e.Tanks),
		Lifepacks:  slices.Clone(e.Lifepacks),
		Coinpacks:  slices.Clone(e.Coinpacks),
	}
}

// each calls fn for every entity in projection order.
func (e Entities) each(fn func(Occupant)) {
	for _, t := range e.Tanks {
		fn(t)
	}
	for _, b := range e.BrickWalls {
		fn(b)
	}
	for _, s := range e.StoneWalls {
		fn(s)
	}
	for _, w := range e.Waters {
		fn(w)
	}
	for _, l := range e.Lifepacks {
		fn(l)
	}
	for _, c := range e.Coinpacks {
		fn(c)
	}
}

// Grid maps every cell to at most one occupant. It is indexed [x][y].
type Grid [GridSize][GridSize]Occupant

// At returns the occupant of p, or nil for an empty or off-grid cell.
func (g *Grid) At(p Point) Occupant {
	if !p.InBounds() {
		return nil
	}
	return g[p.X][p.Y]
}

// project builds the grid from the collections. When collections overlap
// the first entity in projection order keeps the cell: tanks, then walls
// and water, then pickups. Tank positions come straight from the server so
// they always win.
func project(e Entities) Grid {
	var g Grid
	e.each(func(o Occupant) {
		p := o.Location()
		if p.InBounds() && g[p.X][p.Y] == nil {
			g[p.X][p.Y] = o
		}
	})
	return g
}

// World is one immutable snapshot of the arena.
type World struct {
	// PlayerNumber is the player this client was assigned.
	PlayerNumber int
	Entities

	grid Grid
}

// NewWorld builds a snapshot owning a copy of e.
func NewWorld(playerNumber int, e Entities) *World {
	w := &World{
		PlayerNumber: playerNumber,
		Entities:     e.Clone(),
	}
	w.grid = project(w.Entities)
	return w
}

// Clone performs a deep copy of the world.
func (w *World) Clone() *World {
	if w == nil {
		return nil
	}
	return &World{
		PlayerNumber: w.PlayerNumber,
		Entities:     w.Entities.Clone(),
		grid:         w.grid,
	}
}

// Grid returns a copy of the projected grid.
func (w *World) Grid() Grid {
	return w.grid
}

// At returns the occupant of p, or nil.
func (w *World) At(p Point) Occupant {
	return w.grid.At(p)
}

// TankFor returns the tank of the given player.
func (w *World) TankFor(player int) (Tank, bool) {
	for _, t := range w.Tanks {
		if t.Player == player {
			return t, true
		}
	}
	return Tank{}, false
}

// ControlledTank returns the tank driven by this client.
func (w *World) ControlledTank() (Tank, bool) {
	for _, t := range w.Tanks {
		if t.Controlled {
			return t, true
		}
	}
	return Tank{}, false
}

// Ahead returns the occupant of the cell t faces. ok is false when t faces
// the edge of the grid.
func (w *World) Ahead(t Tank) (o Occupant, ok bool) {
	next := t.Point.Add(t.Facing.Delta())
	if !next.InBounds() {
		return nil, false
	}
	return w.At(next), true
}

// Equal reports whether two snapshots hold the same player and entities in
// the same order.
func (w *World) Equal(o *World) bool {
	if w == nil || o == nil {
		return w == o
	}
	return w.PlayerNumber == o.PlayerNumber &&
		slices.Equal(w.BrickWalls, o.BrickWalls) &&
		slices.Equal(w.StoneWalls, o.StoneWalls) &&
		slices.Equal(w.Waters, o.Waters) &&
		slices.Equal(w.Tanks, o.Tanks) &&
		slices.Equal(w.Lifepacks, o.Lifepacks) &&
		slices.Equal(w.Coinpacks, o.Coinpacks)
}

// Validate checks that the grid is exactly the projection of the
// collections: every entity is on the grid, owns its cell, no cell is
// claimed twice, and each player has at most one tank.
func (w *World) Validate() error {
	var errs []error
	claimed := make(map[Point]Kind)
	players := make(map[int]bool)

	w.Entities.each(func(o Occupant) {
		p := o.Location()
		if !p.InBounds() {
			errs = append(errs, fmt.Errorf("%s at %s: %w", o.Kind(), p, ErrOffGrid))
			return
		}
		if prev, ok := claimed[p]; ok {
			errs = append(errs, fmt.Errorf("%s and %s at %s: %w", prev, o.Kind(), p, ErrOverlap))
			return
		}
		claimed[p] = o.Kind()
		if w.grid[p.X][p.Y] != o {
			errs = append(errs, fmt.Errorf("%s at %s: %w", o.Kind(), p, ErrGridMismatch))
		}
	})
	for _, t := range w.Tanks {
		if players[t.Player] {
			errs = append(errs, fmt.Errorf("player %d: %w", t.Player, ErrDuplicatePlayer))
		}
		players[t.Player] = true
	}
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			if o := w.grid[x][y]; o != nil {
				if _, ok := claimed[Pt(x, y)]; !ok {
					errs = append(errs, fmt.Errorf("stray %s at %s: %w", o.Kind(), Pt(x, y), ErrGridMismatch))
				}
			}
		}
	}
	return errors.Join(errs...)
}
