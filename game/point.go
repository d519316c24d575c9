package game

import "fmt"

// GridSize is the side length of the square arena.
const GridSize = 20

// Point is a grid coordinate. (0,0) is the top-left cell.
type Point struct {
	X int
	Y int
}

// Pt is a convenience constructor for Point.
func Pt(x, y int) Point { return Point{X: x, Y: y} }

// InBounds reports whether the point lies on the arena grid.
func (p Point) InBounds() bool {
	return p.X >= 0 && p.X < GridSize && p.Y >= 0 && p.Y < GridSize
}

// Add returns a copy of p offset by other.
func (p Point) Add(other Point) Point {
	p.X += other.X
	p.Y += other.Y
	return p
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction is a tank facing. The wire encodes it as 0-3.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Valid reports whether d is one of the four cardinal facings.
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

// Delta is the unit step a tank takes when moving in direction d.
func (d Direction) Delta() Point {
	switch d {
	case North:
		return Point{Y: -1}
	case East:
		return Point{X: 1}
	case South:
		return Point{Y: 1}
	case West:
		return Point{X: -1}
	}
	return Point{}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}
