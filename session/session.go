// Package session turns an ordered stream of frames into a sequence of world
// snapshots and the commands chosen in response.
package session

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/protocol"
	"github.com/brensch/tankbot/rules"
)

// Step is one entry in a session's history.
type Step struct {
	Seq        uint64
	ReceivedAt time.Time
	Frame      string
	// Message is nil for the opening step and for frames that failed to
	// decode.
	Message protocol.Message
	// World is the snapshot after the message was applied.
	World      *game.World
	Command    protocol.Command
	HasCommand bool
	// Err is the decode or transition error, if any. The world is left as
	// it was.
	Err error
}

// Session folds frames strictly in arrival order. It is not safe for
// concurrent use; Pipeline gives it a single caller.
type Session struct {
	ID string

	transition rules.Transitioner
	policy     Policy
	world      *game.World
	history    []Step
	seq        uint64
	now        func() time.Time
}

// New starts an empty session. A nil policy never sends anything.
func New(transition rules.Transitioner, policy Policy) *Session {
	if policy == nil {
		policy = PolicyFunc(func([]Step, *game.World, protocol.Message) (protocol.Command, bool) {
			return 0, false
		})
	}
	return &Session{
		ID:         uuid.NewString(),
		transition: transition,
		policy:     policy,
		now:        time.Now,
	}
}

// Open asks the policy for the command to send before any frame arrives
// and records it as the first step.
func (s *Session) Open() (protocol.Command, bool) {
	cmd, ok := s.policy.Next(s.History(), s.world, nil)
	s.history = append(s.history, Step{
		Seq:        s.nextSeq(),
		ReceivedAt: s.now(),
		Command:    cmd,
		HasCommand: ok,
	})
	return cmd, ok
}

// World returns the current snapshot, nil before the initiation arrives.
func (s *Session) World() *game.World {
	return s.world
}

// History returns the steps taken so far, oldest first.
func (s *Session) History() []Step {
	return slices.Clone(s.history)
}

// Step decodes frame and folds it into the world.
func (s *Session) Step(frame string) (Step, error) {
	msg, err := protocol.Decode(frame)
	return s.fold(frame, msg, err)
}

func (s *Session) nextSeq() uint64 {
	n := s.seq
	s.seq++
	return n
}

// fold applies an already decoded frame. Failed steps are returned but not
// added to the history.
func (s *Session) fold(frame string, msg protocol.Message, decodeErr error) (Step, error) {
	step := Step{
		Seq:        s.nextSeq(),
		ReceivedAt: s.now(),
		Frame:      frame,
		Message:    msg,
		World:      s.world,
	}
	if decodeErr != nil {
		step.Err = decodeErr
		return step, decodeErr
	}

	next, err := s.transition.Apply(s.world, msg)
	if err != nil {
		step.Err = err
		return step, err
	}

	step.World = next
	step.Command, step.HasCommand = s.policy.Next(s.History(), next, msg)
	s.world = next
	s.history = append(s.history, step)
	return step, nil
}
