// Package protocol decodes the tank game server's text frames into typed
// messages and renders client commands back to wire text.
//
// Long-form frames look like
//
//	I:P1:0,0;1,1:2,2:3,3#
//	S:P1;0,0;0#
//	G:P1;0,0;0;0;100;0;0:...:3,4,1;5,6,2#
//	L:5,5:12#
//	C:5,6:12:700#
//
// and short-code frames are bare reasons such as OBSTACLE;25# or
// PLAYERS_FULL#. Decoding is pure and holds no state between calls.
package protocol

import "github.com/brensch/tankbot/game"

// Kind tags the message variants.
type Kind int

const (
	KindInitiation Kind = iota + 1
	KindJoin
	KindBroadcast
	KindLifepack
	KindCoinpack
	KindJoinFailed
	KindCommandFailed
)

func (k Kind) String() string {
	switch k {
	case KindInitiation:
		return "initiation"
	case KindJoin:
		return "join"
	case KindBroadcast:
		return "broadcast"
	case KindLifepack:
		return "lifepack"
	case KindCoinpack:
		return "coinpack"
	case KindJoinFailed:
		return "join_failed"
	case KindCommandFailed:
		return "command_failed"
	}
	return "unknown"
}

// Message is one decoded frame. The set of variants is closed: only the
// types in this package implement it.
type Message interface {
	Kind() Kind
	sealed()
}

// Initiation is the first message of a game and lays out the static map.
type Initiation struct {
	PlayerNumber int
	Bricks       []game.Point
	Stones       []game.Point
	Waters       []game.Point
}

// Placement is one tank's starting position in a join reply.
type Placement struct {
	PlayerNumber int
	Location     game.Point
	Facing       game.Direction
}

// Join accepts the join request and places the tanks.
type Join struct {
	Placements []Placement
}

// TankDetails is one tank record of a broadcast.
type TankDetails struct {
	PlayerNumber int
	Location     game.Point
	Facing       game.Direction
	Shot         bool
	Health       int
	Coins        int
	Points       int
}

// BrickDamage reports the damage level (0 undamaged, 4 destroyed) of the
// brick at Location.
type BrickDamage struct {
	Location    game.Point
	DamageLevel int
}

// Broadcast is the periodic global update. Its arrival is the only clock.
type Broadcast struct {
	Tanks  []TankDetails
	Damage []BrickDamage
}

type LifepackAppeared struct {
	Location game.Point
	Ticks    int
}

type CoinpackAppeared struct {
	Location game.Point
	Ticks    int
	Value    int
}

type JoinFailed struct {
	Reason JoinFailure
}

type CommandFailed struct {
	Reason CommandFailure
}

func (Initiation) Kind() Kind       { return KindInitiation }
func (Join) Kind() Kind             { return KindJoin }
func (Broadcast) Kind() Kind        { return KindBroadcast }
func (LifepackAppeared) Kind() Kind { return KindLifepack }
func (CoinpackAppeared) Kind() Kind { return KindCoinpack }
func (JoinFailed) Kind() Kind       { return KindJoinFailed }
func (CommandFailed) Kind() Kind    { return KindCommandFailed }

func (Initiation) sealed()       {}
func (Join) sealed()             {}
func (Broadcast) sealed()        {}
func (LifepackAppeared) sealed() {}
func (CoinpackAppeared) sealed() {}
func (JoinFailed) sealed()       {}
func (CommandFailed) sealed()    {}
