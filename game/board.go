package game

import (
	"fmt"
	"strings"
)

// Board is the 8x8 grid stored row-major in direct coordinates.
type Board [BoardFields]Field

// PenguinAt pairs a penguin's position with its team.
type PenguinAt struct {
	Pos  Doubled
	Team Team
}

// Get returns the field at p, or false when p is off the board.
func (b *Board) Get(p Doubled) (Field, bool) {
	if !p.InBounds() {
		return Field{}, false
	}
	return b[p.ToDirect().Index()], true
}

// At is the unchecked accessor. It panics for out-of-range points.
func (b *Board) At(p Doubled) Field {
	return b[p.ToDirect().Index()]
}

func (b *Board) Ptr(p Doubled) *Field {
	return &b[p.ToDirect().Index()]
}

func (b *Board) Set(p Doubled, f Field) {
	b[p.ToDirect().Index()] = f
}

// FishAt returns the fish on p, treating off-board points as zero.
func (b *Board) FishAt(p Doubled) int {
	f, ok := b.Get(p)
	if !ok {
		return 0
	}
	return f.Fish()
}

// PossibleMovesFrom lists the slides from p: for each direction in order, every
// step along the ray until the board edge or the first tile without fish.
func (b *Board) PossibleMovesFrom(p Doubled) []Move {
	moves := make([]Move, 0, 16)
	for _, dir := range Directions {
		for n := 1; n < BoardSize; n++ {
			to := p.Add(dir.Scale(n))
			if b.FishAt(to) == 0 {
				break
			}
			moves = append(moves, Between(p, to))
		}
	}
	return moves
}

// Fields visits every tile in row-major order until fn returns false.
func (b *Board) Fields(fn func(Doubled, Field) bool) {
	for i := range b {
		if !fn(DirectFromIndex(i).ToDoubled(), b[i]) {
			return
		}
	}
}

// Penguins returns all placed penguins in row-major order.
func (b *Board) Penguins() []PenguinAt {
	out := make([]PenguinAt, 0, Teams*PenguinsPerTeam)
	for i := range b {
		if t, ok := b[i].Penguin(); ok {
			out = append(out, PenguinAt{Pos: DirectFromIndex(i).ToDoubled(), Team: t})
		}
	}
	return out
}

func (b *Board) PenguinsOf(t Team) []Doubled {
	out := make([]Doubled, 0, PenguinsPerTeam)
	for _, p := range b.Penguins() {
		if p.Team == t {
			out = append(out, p.Pos)
		}
	}
	return out
}

// TotalFish sums the fish still lying on the board.
func (b *Board) TotalFish() int {
	total := 0
	for i := range b {
		total += b[i].Fish()
	}
	return total
}

// String renders eight lines of eight tokens, top row first.
func (b *Board) String() string {
	var sb strings.Builder
	sb.Grow(BoardFields + BoardSize)
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			sb.WriteRune(b[y*BoardSize+x].Token())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseBoard reads the text form produced by String. Blank lines are skipped
// and surrounding whitespace on each line is ignored.
func ParseBoard(s string) (Board, error) {
	var b Board
	row := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if row >= BoardSize {
			return Board{}, fmt.Errorf("%w: board has wrong number of fields", ErrParse)
		}
		runes := []rune(line)
		if len(runes) != BoardSize {
			return Board{}, fmt.Errorf("%w: row %d has %d fields, want %d", ErrParse, row, len(runes), BoardSize)
		}
		for x, r := range runes {
			f, err := ParseField(r)
			if err != nil {
				return Board{}, fmt.Errorf("row %d col %d: %w", row, x, err)
			}
			b[row*BoardSize+x] = f
		}
		row++
	}
	if row != BoardSize {
		return Board{}, fmt.Errorf("%w: board has wrong number of fields", ErrParse)
	}
	return b, nil
}
