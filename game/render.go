package game

import "strings"

// Glyph is the single character used to draw an occupant. Tanks point the
// way they face and bricks show their remaining health.
func Glyph(o Occupant) byte {
	switch o := o.(type) {
	case BrickWall:
		return byte('0' + o.Health)
	case StoneWall:
		return '#'
	case Water:
		return '~'
	case Tank:
		if !o.Facing.Valid() {
			return '?'
		}
		return "^>v<"[o.Facing]
	case Lifepack:
		return '+'
	case Coinpack:
		return '$'
	}
	return '.'
}

// Render draws the grid as GridSize lines of text, north at the top.
func (w *World) Render() string {
	var sb strings.Builder
	sb.Grow(GridSize * (GridSize + 1))
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			sb.WriteByte(Glyph(w.grid[x][y]))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
