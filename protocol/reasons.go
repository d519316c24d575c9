package protocol

// CommandFailure is the reason the server rejected a move or shot.
type CommandFailure int

const (
	Obstacle CommandFailure = iota + 1
	CellOccupied
	Dead
	TooQuick
	InvalidCell
	GameHasFinished
	GameNotStartedYet
	NotAValidContestant
	Pitfall
)

// JoinFailure is the reason the server refused a join request.
type JoinFailure int

const (
	PlayersFull JoinFailure = iota + 1
	AlreadyAdded
	GameAlreadyStarted
)

var (
	commandFailureNames = map[CommandFailure]string{
		Obstacle:            "Obstacle",
		CellOccupied:        "CellOccupied",
		Dead:                "Dead",
		TooQuick:            "TooQuick",
		InvalidCell:         "InvalidCell",
		GameHasFinished:     "GameHasFinished",
		GameNotStartedYet:   "GameNotStartedYet",
		NotAValidContestant: "NotAValidContestant",
		Pitfall:             "Pitfall",
	}
	joinFailureNames = map[JoinFailure]string{
		PlayersFull:        "PlayersFull",
		AlreadyAdded:       "AlreadyAdded",
		GameAlreadyStarted: "GameAlreadyStarted",
	}

	// Reverse lookups keyed by canonical identifier.
	commandFailures = invert(commandFailureNames)
	joinFailures    = invert(joinFailureNames)
)

func invert[K comparable](m map[K]string) map[string]K {
	out := make(map[string]K, len(m))
	for k, name := range m {
		out[name] = k
	}
	return out
}

func (c CommandFailure) String() string {
	if name, ok := commandFailureNames[c]; ok {
		return name
	}
	return "UnknownCommandFailure"
}

func (j JoinFailure) String() string {
	if name, ok := joinFailureNames[j]; ok {
		return name
	}
	return "UnknownJoinFailure"
}

// LookupCommandFailure finds the reason with the given canonical identifier.
func LookupCommandFailure(identifier string) (CommandFailure, bool) {
	c, ok := commandFailures[identifier]
	return c, ok
}

// LookupJoinFailure finds the reason with the given canonical identifier.
func LookupJoinFailure(identifier string) (JoinFailure, bool) {
	j, ok := joinFailures[identifier]
	return j, ok
}
