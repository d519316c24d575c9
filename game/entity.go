package game

const (
	// MaxBrickHealth is the health of an undamaged brick wall.
	MaxBrickHealth = 4
	// DefaultTankHealth is assumed for tanks placed by a join reply, which
	// carries no health field.
	DefaultTankHealth = 100
	// DefaultLifepackHealth is the healing value of a lifepack; the server
	// does not send it.
	DefaultLifepackHealth = 5
	// PickupDecayThreshold is the tick count at or below which a pickup has
	// vanished.
	PickupDecayThreshold = 0
)

// Kind identifies the type of entity occupying a cell.
type Kind int

const (
	KindEmpty Kind = iota
	KindBrick
	KindStone
	KindWater
	KindTank
	KindLifepack
	KindCoinpack
)

func (k Kind) String() string {
	switch k {
	case KindBrick:
		return "brick"
	case KindStone:
		return "stone"
	case KindWater:
		return "water"
	case KindTank:
		return "tank"
	case KindLifepack:
		return "lifepack"
	case KindCoinpack:
		return "coinpack"
	}
	return "empty"
}

// Occupant is anything that can sit in a grid cell. All implementations
// are value types, so copying an Occupant never aliases state.
type Occupant interface {
	Location() Point
	Kind() Kind
}

type BrickWall struct {
	Point  Point
	Health int
}

func (b BrickWall) Location() Point { return b.Point }
func (BrickWall) Kind() Kind        { return KindBrick }

// StoneWall is indestructible.
type StoneWall struct {
	Point Point
}

func (s StoneWall) Location() Point { return s.Point }
func (StoneWall) Kind() Kind        { return KindStone }

type Water struct {
	Point Point
}

func (w Water) Location() Point { return w.Point }
func (Water) Kind() Kind        { return KindWater }

// Tank is a player's tank as last reported by the server.
type Tank struct {
	Point      Point
	Health     int
	Facing     Direction
	Points     int
	Coins      int
	Player     int
	Shot       bool
	Controlled bool
}

func (t Tank) Location() Point { return t.Point }
func (Tank) Kind() Kind        { return KindTank }

// Lifepack restores Health when collected. Ticks counts the broadcasts it
// has left before vanishing.
type Lifepack struct {
	Point  Point
	Health int
	Ticks  int
}

func (l Lifepack) Location() Point { return l.Point }
func (Lifepack) Kind() Kind        { return KindLifepack }

type Coinpack struct {
	Point Point
	Value int
	Ticks int
}

func (c Coinpack) Location() Point { return c.Point }
func (Coinpack) Kind() Kind        { return KindCoinpack }
