package game

// Change describes one cell whose occupant differs between two snapshots.
// Before or After is nil when the cell was or became empty.
type Change struct {
	Point  Point
	Before Occupant
	After  Occupant
}

// Diff lists the cells that changed from prev to next in row-major order.
// A nil prev is treated as an empty arena. It is a derived view; neither
// snapshot is modified.
func Diff(prev, next *World) []Change {
	var before, after Grid
	if prev != nil {
		before = prev.grid
	}
	if next != nil {
		after = next.grid
	}

	var changes []Change
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			b, a := before[x][y], after[x][y]
			if b != a {
				changes = append(changes, Change{Point: Pt(x, y), Before: b, After: a})
			}
		}
	}
	return changes
}
