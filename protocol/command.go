package protocol

import (
	"fmt"
	"strings"
)

// Command is a request the client sends to the server.
type Command int

const (
	CommandJoin Command = iota
	CommandUp
	CommandDown
	CommandLeft
	CommandRight
	CommandShoot
)

var commandWords = [...]string{
	CommandJoin:  "JOIN",
	CommandUp:    "UP",
	CommandDown:  "DOWN",
	CommandLeft:  "LEFT",
	CommandRight: "RIGHT",
	CommandShoot: "SHOOT",
}

// Moves are the four movement commands.
var Moves = []Command{CommandUp, CommandDown, CommandLeft, CommandRight}

func (c Command) Valid() bool {
	return c >= CommandJoin && c <= CommandShoot
}

func (c Command) String() string {
	if !c.Valid() {
		return fmt.Sprintf("COMMAND(%d)", int(c))
	}
	return commandWords[c]
}

// Frame renders the command as it is sent on the wire, e.g. SHOOT#.
func (c Command) Frame() string {
	return c.String() + string(Terminator)
}

// ParseCommand reads a command word, with or without terminator, in any
// case.
func ParseCommand(text string) (Command, error) {
	word := strings.ToUpper(StripTerminator(text))
	for c, w := range commandWords {
		if w == word {
			return Command(c), nil
		}
	}
	return 0, fmt.Errorf("command %q: %w", text, ErrUnknownShortCode)
}
