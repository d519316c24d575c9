package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/brensch/tankbot/game"
)

// SnapshotFormat names the encoding stored in FrameRow.State.
const SnapshotFormat = "msgpack_world_v1"

// worldDTO is the stored form of a world. The grid is not stored; it is
// projected again when the snapshot is decoded.
type worldDTO struct {
	Player    int         `msgpack:"player"`
	Bricks    []brickDTO  `msgpack:"bricks,omitempty"`
	Stones    []pointDTO  `msgpack:"stones,omitempty"`
	Waters    []pointDTO  `msgpack:"waters,omitempty"`
	Tanks     []tankDTO   `msgpack:"tanks,omitempty"`
	Lifepacks []pickupDTO `msgpack:"lifepacks,omitempty"`
	Coinpacks []pickupDTO `msgpack:"coinpacks,omitempty"`
}

type pointDTO struct {
	_msgpack struct{} `msgpack:",as_array"`
	X, Y     int
}

type brickDTO struct {
	_msgpack struct{} `msgpack:",as_array"`
	X, Y     int
	Health   int
}

type tankDTO struct {
	_msgpack   struct{} `msgpack:",as_array"`
	Player     int
	X, Y       int
	Facing     int
	Health     int
	Coins      int
	Points     int
	Shot       bool
	Controlled bool
}

type pickupDTO struct {
	_msgpack struct{} `msgpack:",as_array"`
	X, Y     int
	Ticks    int
	// Amount is the healing value of a lifepack or the value of a coinpack.
	Amount int
}

// EncodeSnapshot serialises w for storage.
func EncodeSnapshot(w *game.World) ([]byte, error) {
	if w == nil {
		return nil, nil
	}
	dto := worldDTO{Player: w.PlayerNumber}
	for _, b := range w.BrickWalls {
		dto.Bricks = append(dto.Bricks, brickDTO{X: b.Point.X, Y: b.Point.Y, Health: b.Health})
	}
	for _, s := range w.StoneWalls {
		dto.Stones = append(dto.Stones, pointDTO{X: s.Point.X, Y: s.Point.Y})
	}
	for _, wt := range w.Waters {
		dto.Waters = append(dto.Waters, pointDTO{X: wt.Point.X, Y: wt.Point.Y})
	}
	for _, t := range w.Tanks {
		dto.Tanks = append(dto.Tanks, tankDTO{
			Player:     t.Player,
			X:          t.Point.X,
			Y:          t.Point.Y,
			Facing:     int(t.Facing),
			Health:     t.Health,
			Coins:      t.Coins,
			Points:     t.Points,
			Shot:       t.Shot,
			Controlled: t.Controlled,
		})
	}
	for _, l := range w.Lifepacks {
		dto.Lifepacks = append(dto.Lifepacks, pickupDTO{X: l.Point.X, Y: l.Point.Y, Ticks: l.Ticks, Amount: l.Health})
	}
	for _, c := range w.Coinpacks {
		dto.Coinpacks = append(dto.Coinpacks, pickupDTO{X: c.Point.X, Y: c.Point.Y, Ticks: c.Ticks, Amount: c.Value})
	}

	b, err := msgpack.Marshal(&dto)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot rebuilds a world from EncodeSnapshot output. An empty
// blob decodes to nil.
func DecodeSnapshot(b []byte) (*game.World, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var dto worldDTO
	if err := msgpack.Unmarshal(b, &dto); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	var e game.Entities
	for _, b := range dto.Bricks {
		e.BrickWalls = append(e.BrickWalls, game.BrickWall{Point: game.Pt(b.X, b.Y), Health: b.Health})
	}
	for _, s := range dto.Stones {
		e.StoneWalls = append(e.StoneWalls, game.StoneWall{Point: game.Pt(s.X, s.Y)})
	}
	for _, wt := range dto.Waters {
		e.Waters = append(e.Waters, game.Water{Point: game.Pt(wt.X, wt.Y)})
	}
	for _, t := range dto.Tanks {
		e.Tanks = append(e.Tanks, game.Tank{
			Point:      game.Pt(t.X, t.Y),
			Health:     t.Health,
			Facing:     game.Direction(t.Facing),
			Points:     t.Points,
			Coins:      t.Coins,
			Player:     t.Player,
			Shot:       t.Shot,
			Controlled: t.Controlled,
		})
	}
	for _, l := range dto.Lifepacks {
		e.Lifepacks = append(e.Lifepacks, game.Lifepack{Point: game.Pt(l.X, l.Y), Health: l.Amount, Ticks: l.Ticks})
	}
	for _, c := range dto.Coinpacks {
		e.Coinpacks = append(e.Coinpacks, game.Coinpack{Point: game.Pt(c.X, c.Y), Value: c.Amount, Ticks: c.Ticks})
	}
	return game.NewWorld(dto.Player, e), nil
}
