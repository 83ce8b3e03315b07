package game

import "fmt"

// Move is either a placement (From == nil) or a slide between two tiles.
type Move struct {
	From *Doubled
	To   Doubled
}

func Placing(to Doubled) Move { return Move{To: to} }

func Between(from, to Doubled) Move {
	f := from
	return Move{From: &f, To: to}
}

// Sliding is the slide of n steps along dir.
func Sliding(from Doubled, dir Direction, n int) Move {
	return Between(from, from.Add(dir.Scale(n)))
}

func (m Move) IsPlacement() bool { return m.From == nil }

func (m Move) Equal(o Move) bool {
	if m.To != o.To {
		return false
	}
	if m.From == nil || o.From == nil {
		return m.From == nil && o.From == nil
	}
	return *m.From == *o.From
}

// Clone returns a move that shares no pointers with m.
func (m Move) Clone() Move {
	if m.From == nil {
		return Move{To: m.To}
	}
	return Between(*m.From, m.To)
}

func (m Move) String() string {
	if m.From == nil {
		return fmt.Sprintf("-> %s", m.To)
	}
	return fmt.Sprintf("%s -> %s", *m.From, m.To)
}
