// Package rules folds decoded messages into world snapshots.
//
// Apply is a pure function of (world, message): it never modifies its
// input and always returns a fresh snapshot. A Broadcast is the only thing
// that advances time; each one ages every pickup by exactly one tick.
package rules

import (
	"errors"
	"fmt"
	"slices"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/protocol"
)

var (
	ErrNoWorld        = errors.New("no world to apply message to")
	ErrNoBrick        = errors.New("damage reported for a cell without a brick wall")
	ErrOffGrid        = errors.New("location outside the grid")
	ErrOverlap        = errors.New("cell already occupied")
	ErrDuplicateTank  = errors.New("more than one tank record for a player")
	ErrUnknownMessage = errors.New("unknown message variant")
)

// ErrBrickGone is ErrNoBrick for a brick reported fully destroyed. The
// server keeps listing destroyed bricks in every broadcast.
var ErrBrickGone = fmt.Errorf("%w: brick already destroyed", ErrNoBrick)

// Policy decides what happens when a message contradicts the tracked world.
type Policy int

const (
	// Abort fails the transition with a *ViolationError.
	Abort Policy = iota
	// Skip drops the offending record and applies the rest of the message.
	Skip
)

func (p Policy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

// ParsePolicy reads "abort" or "skip".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "abort":
		return Abort, nil
	case "skip":
		return Skip, nil
	}
	return Abort, fmt.Errorf("unknown violation policy %q", s)
}

// ViolationError is a record of a message that can not be reconciled with
// the world it is applied to.
type ViolationError struct {
	Message  protocol.Kind
	Location game.Point
	Player   int
	Err      error
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s at %s (player %d): %v", e.Message, e.Location, e.Player, e.Err)
}

func (e *ViolationError) Unwrap() error { return e.Err }

// Transitioner applies messages under a violation policy. The zero value
// aborts on the first violation.
type Transitioner struct {
	Policy Policy
	// OnSkip, if set, is told about every record dropped under Skip.
	OnSkip func(*ViolationError)
}

// Apply folds msg into w with the Abort policy.
func Apply(w *game.World, msg protocol.Message) (*game.World, error) {
	return Transitioner{}.Apply(w, msg)
}

// Apply returns the snapshot that follows w once msg is received. w may
// be nil only for an Initiation.
func (t Transitioner) Apply(w *game.World, msg protocol.Message) (*game.World, error) {
	if m, ok := msg.(protocol.Initiation); ok {
		return t.fromInitiation(m)
	}
	if w == nil {
		return nil, ErrNoWorld
	}

	switch m := msg.(type) {
	case protocol.Join:
		return t.fromJoin(w, m)
	case protocol.Broadcast:
		return t.fromBroadcast(w, m)
	case protocol.LifepackAppeared:
		return t.fromLifepack(w, m)
	case protocol.CoinpackAppeared:
		return t.fromCoinpack(w, m)
	case protocol.JoinFailed, protocol.CommandFailed:
		return w.Clone(), nil
	}
	return nil, fmt.Errorf("%T: %w", msg, ErrUnknownMessage)
}

// violation returns v if the transition must stop, or nil after reporting
// it when the record is to be skipped.
func (t Transitioner) violation(v *ViolationError) error {
	if t.Policy != Skip {
		return v
	}
	if t.OnSkip != nil {
		t.OnSkip(v)
	}
	return nil
}

// place checks that p can take a new static entity and claims it.
func (t Transitioner) place(claimed map[game.Point]bool, kind protocol.Kind, p game.Point) (bool, error) {
	var cause error
	switch {
	case !p.InBounds():
		cause = ErrOffGrid
	case claimed[p]:
		cause = ErrOverlap
	default:
		claimed[p] = true
		return true, nil
	}
	return false, t.violation(&ViolationError{Message: kind, Location: p, Err: cause})
}

func (t Transitioner) fromInitiation(m protocol.Initiation) (*game.World, error) {
	var e game.Entities
	claimed := make(map[game.Point]bool, len(m.Bricks)+len(m.Stones)+len(m.Waters))

	for _, p := range m.Bricks {
		ok, err := t.place(claimed, m.Kind(), p)
		if err != nil {
			return nil, err
		}
		if ok {
			e.BrickWalls = append(e.BrickWalls, game.BrickWall{Point: p, Health: game.MaxBrickHealth})
		}
	}
	for _, p := range m.Stones {
		ok, err := t.place(claimed, m.Kind(), p)
		if err != nil {
			return nil, err
		}
		if ok {
			e.StoneWalls = append(e.StoneWalls, game.StoneWall{Point: p})
		}
	}
	for _, p := range m.Waters {
		ok, err := t.place(claimed, m.Kind(), p)
		if err != nil {
			return nil, err
		}
		if ok {
			e.Waters = append(e.Waters, game.Water{Point: p})
		}
	}
	return game.NewWorld(m.PlayerNumber, e), nil
}

// tankSet collects tanks, enforcing one per player and on-grid locations.
type tankSet struct {
	t       Transitioner
	kind    protocol.Kind
	owner   int
	tanks   []game.Tank
	players map[int]bool
}

func (s *tankSet) add(tank game.Tank) error {
	var cause error
	switch {
	case !tank.Point.InBounds():
		cause = ErrOffGrid
	case s.players[tank.Player]:
		cause = ErrDuplicateTank
	default:
		tank.Controlled = tank.Player == s.owner
		s.players[tank.Player] = true
		s.tanks = append(s.tanks, tank)
		return nil
	}
	return s.t.violation(&ViolationError{Message: s.kind, Location: tank.Point, Player: tank.Player, Err: cause})
}

func (t Transitioner) newTankSet(kind protocol.Kind, owner, size int) *tankSet {
	return &tankSet{
		t:       t,
		kind:    kind,
		owner:   owner,
		tanks:   make([]game.Tank, 0, size),
		players: make(map[int]bool, size),
	}
}

// fromJoin starts the match: walls and water carry over, tanks are placed
// and nothing else survives.
func (t Transitioner) fromJoin(w *game.World, m protocol.Join) (*game.World, error) {
	set := t.newTankSet(m.Kind(), w.PlayerNumber, len(m.Placements))
	for _, p := range m.Placements {
		err := set.add(game.Tank{
			Point:  p.Location,
			Health: game.DefaultTankHealth,
			Facing: p.Facing,
			Player: p.PlayerNumber,
		})
		if err != nil {
			return nil, err
		}
	}

	return game.NewWorld(w.PlayerNumber, game.Entities{
		BrickWalls: w.BrickWalls,
		StoneWalls: w.StoneWalls,
		Waters:     w.Waters,
		Tanks:      set.tanks,
	}), nil
}

func (t Transitioner) fromBroadcast(w *game.World, m protocol.Broadcast) (*game.World, error) {
	bricks := slices.Clone(w.BrickWalls)
	index := make(map[game.Point]int, len(bricks))
	for i, b := range bricks {
		index[b.Point] = i
	}

	for _, d := range m.Damage {
		// The grid may show a tank on the cell, so look the brick up directly.
		i, ok := index[d.Location]
		if !ok {
			cause := ErrNoBrick
			if d.DamageLevel >= game.MaxBrickHealth {
				cause = ErrBrickGone
			}
			if err := t.violation(&ViolationError{Message: m.Kind(), Location: d.Location, Err: cause}); err != nil {
				return nil, err
			}
			continue
		}
		bricks[i].Health = game.MaxBrickHealth - d.DamageLevel
	}
	bricks = slices.DeleteFunc(bricks, func(b game.BrickWall) bool { return b.Health <= 0 })

	set := t.newTankSet(m.Kind(), w.PlayerNumber, len(m.Tanks))
	for _, d := range m.Tanks {
		err := set.add(game.Tank{
			Point:  d.Location,
			Health: d.Health,
			Facing: d.Facing,
			Points: d.Points,
			Coins:  d.Coins,
			Player: d.PlayerNumber,
			Shot:   d.Shot,
		})
		if err != nil {
			return nil, err
		}
	}

	occupied := make(map[game.Point]bool, len(set.tanks))
	for _, tank := range set.tanks {
		occupied[tank.Point] = true
	}

	var lifepacks []game.Lifepack
	for _, l := range w.Lifepacks {
		if survives(l.Point, l.Ticks, occupied) {
			l.Ticks--
			lifepacks = append(lifepacks, l)
		}
	}
	var coinpacks []game.Coinpack
	for _, c := range w.Coinpacks {
		if survives(c.Point, c.Ticks, occupied) {
			c.Ticks--
			coinpacks = append(coinpacks, c)
		}
	}

	return game.NewWorld(w.PlayerNumber, game.Entities{
		BrickWalls: bricks,
		StoneWalls: w.StoneWalls,
		Waters:     w.Waters,
		Tanks:      set.tanks,
		Lifepacks:  lifepacks,
		Coinpacks:  coinpacks,
	}), nil
}

// survives reports whether a pickup outlasts the current broadcast: it must
// still have ticks left after this one and no tank may stand on it.
func survives(p game.Point, ticks int, occupied map[game.Point]bool) bool {
	return ticks-1 > game.PickupDecayThreshold && !occupied[p]
}

func (t Transitioner) fromLifepack(w *game.World, m protocol.LifepackAppeared) (*game.World, error) {
	if !m.Location.InBounds() {
		if err := t.violation(&ViolationError{Message: m.Kind(), Location: m.Location, Err: ErrOffGrid}); err != nil {
			return nil, err
		}
		return w.Clone(), nil
	}
	e := w.Entities
	e.Lifepacks = append(slices.Clone(w.Lifepacks), game.Lifepack{
		Point:  m.Location,
		Health: game.DefaultLifepackHealth,
		Ticks:  m.Ticks,
	})
	return game.NewWorld(w.PlayerNumber, e), nil
}

func (t Transitioner) fromCoinpack(w *game.World, m protocol.CoinpackAppeared) (*game.World, error) {
	if !m.Location.InBounds() {
		if err := t.violation(&ViolationError{Message: m.Kind(), Location: m.Location, Err: ErrOffGrid}); err != nil {
			return nil, err
		}
		return w.Clone(), nil
	}
	e := w.Entities
	e.Coinpacks = append(slices.Clone(w.Coinpacks), game.Coinpack{
		Point: m.Location,
		Value: m.Value,
		Ticks: m.Ticks,
	})
	return game.NewWorld(w.PlayerNumber, e), nil
}
