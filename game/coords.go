package game

import "fmt"

// Doubled is a coordinate in the doubled hex system. Horizontal neighbours are
// two apart in X, diagonal neighbours one apart in both X and Y. Moves, rays
// and bounds checks are expressed in this space.
type Doubled struct {
	X int
	Y int
}

// Direct is a row/column coordinate on the 8x8 storage grid.
type Direct struct {
	X int
	Y int
}

// Direction is one of the six hex directions as a doubled delta.
type Direction = Doubled

var (
	UpLeft    = Direction{X: -1, Y: -1}
	UpRight   = Direction{X: 1, Y: -1}
	Right     = Direction{X: 2, Y: 0}
	DownRight = Direction{X: 1, Y: 1}
	DownLeft  = Direction{X: -1, Y: 1}
	Left      = Direction{X: -2, Y: 0}
)

// Directions lists the hex directions in move generation order.
var Directions = [6]Direction{UpLeft, UpRight, Right, DownRight, DownLeft, Left}

func (d Doubled) Add(o Doubled) Doubled { return Doubled{X: d.X + o.X, Y: d.Y + o.Y} }
func (d Doubled) Sub(o Doubled) Doubled { return Doubled{X: d.X - o.X, Y: d.Y - o.Y} }
func (d Doubled) Scale(n int) Doubled   { return Doubled{X: d.X * n, Y: d.Y * n} }

// ToDirect converts to storage coordinates. X uses truncating division, which
// is lossless for every in-bounds doubled point.
func (d Doubled) ToDirect() Direct {
	return Direct{X: d.X / 2, Y: d.Y}
}

// ToDoubled converts a storage coordinate back into doubled space. Odd rows
// are shifted right by one.
func (d Direct) ToDoubled() Doubled {
	return Doubled{X: d.X*2 + (d.Y & 1), Y: d.Y}
}

// InBounds reports whether the point maps onto the board. Negative doubled X
// is rejected before conversion since truncation would fold -1 onto column 0.
func (d Doubled) InBounds() bool {
	if d.X < 0 {
		return false
	}
	return d.ToDirect().InBounds()
}

func (d Direct) InBounds() bool {
	return d.X >= 0 && d.X < BoardSize && d.Y >= 0 && d.Y < BoardSize
}

// Index is the row-major storage index. Only valid for in-bounds points.
func (d Direct) Index() int { return d.Y*BoardSize + d.X }

func DirectFromIndex(i int) Direct {
	return Direct{X: i % BoardSize, Y: i / BoardSize}
}

// HexNeighbors returns the six adjacent points in direction order. Points off
// the board are included.
func (d Doubled) HexNeighbors() [6]Doubled {
	var out [6]Doubled
	for i, dir := range Directions {
		out[i] = d.Add(dir)
	}
	return out
}

// IsStraight reports whether delta is a positive multiple of a single hex
// direction, returning that direction and the step count.
func IsStraight(delta Doubled) (Direction, int, bool) {
	for _, dir := range Directions {
		var n int
		switch {
		case dir.Y == 0:
			if delta.Y != 0 || delta.X%dir.X != 0 {
				continue
			}
			n = delta.X / dir.X
		default:
			if delta.Y%dir.Y != 0 {
				continue
			}
			n = delta.Y / dir.Y
			if delta.X != dir.X*n {
				continue
			}
		}
		if n > 0 {
			return dir, n, true
		}
	}
	return Doubled{}, 0, false
}

func (d Doubled) String() string { return fmt.Sprintf("(%d, %d)", d.X, d.Y) }
func (d Direct) String() string  { return fmt.Sprintf("[%d, %d]", d.X, d.Y) }
