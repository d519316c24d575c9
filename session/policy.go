package session

import (
	"math/rand/v2"
	"sync"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/protocol"
)

// Policy chooses the command to send after a message has been folded into
// the world. history holds every step before the current one. Returning
// false means nothing is sent.
type Policy interface {
	Next(history []Step, current *game.World, msg protocol.Message) (protocol.Command, bool)
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(history []Step, current *game.World, msg protocol.Message) (protocol.Command, bool)

func (f PolicyFunc) Next(history []Step, current *game.World, msg protocol.Message) (protocol.Command, bool) {
	return f(history, current, msg)
}

// RandomPolicy joins on the very first step and answers each broadcast with
// a random move.
type RandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy returns a policy whose moves are fully determined by seed.
func NewRandomPolicy(seed uint64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomPolicy) Next(history []Step, _ *game.World, msg protocol.Message) (protocol.Command, bool) {
	if len(history) == 0 {
		return protocol.CommandJoin, true
	}
	if _, ok := msg.(protocol.Broadcast); !ok {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return protocol.Moves[p.rng.IntN(len(protocol.Moves))], true
}
