package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord is the wire form of a doubled coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MoveDTO is the wire form of a move. From is omitted for placements.
type MoveDTO struct {
	From *Coord `json:"from,omitempty"`
	To   Coord  `json:"to"`
}

// Snapshot is the wire form of a State. Board rows are top first; each token
// is a fish count "0"-"9", a team name ONE/TWO, or a team letter.
type Snapshot struct {
	Board     [][]string `json:"board"`
	Turn      int        `json:"turn"`
	Fish      []int      `json:"fish"`
	LastMove  *MoveDTO   `json:"last_move,omitempty"`
	StartTeam string     `json:"start_team"`
}

func (m Move) DTO() MoveDTO {
	out := MoveDTO{To: Coord{X: m.To.X, Y: m.To.Y}}
	if m.From != nil {
		out.From = &Coord{X: m.From.X, Y: m.From.Y}
	}
	return out
}

func MoveFromDTO(d MoveDTO) Move {
	to := Doubled{X: d.To.X, Y: d.To.Y}
	if d.From == nil {
		return Placing(to)
	}
	return Between(Doubled{X: d.From.X, Y: d.From.Y}, to)
}

func parseToken(tok string) (Field, error) {
	tok = strings.TrimSpace(tok)
	if n, err := strconv.Atoi(tok); err == nil {
		if n < 0 || n > 9 {
			return Field{}, fmt.Errorf("%w: fish count %d out of range", ErrParse, n)
		}
		return FieldWithFish(n), nil
	}
	t, err := ParseTeam(tok)
	if err != nil {
		return Field{}, fmt.Errorf("%w: unrecognized field token %q", ErrParse, tok)
	}
	return FieldWithPenguin(t), nil
}

// FromSnapshot validates and decodes a snapshot.
func FromSnapshot(snap Snapshot) (State, error) {
	var s State
	var penguins [Teams]int
	if len(snap.Board) != BoardSize {
		return State{}, fmt.Errorf("%w: board has %d rows, want %d", ErrParse, len(snap.Board), BoardSize)
	}
	for y, row := range snap.Board {
		if len(row) != BoardSize {
			return State{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrParse, y, len(row), BoardSize)
		}
		for x, tok := range row {
			f, err := parseToken(tok)
			if err != nil {
				return State{}, fmt.Errorf("row %d col %d: %w", y, x, err)
			}
			s.Board[y*BoardSize+x] = f
			if t, ok := f.Penguin(); ok {
				penguins[t.Index()]++
			}
		}
	}
	for _, t := range AllTeams {
		if penguins[t.Index()] > PenguinsPerTeam {
			return State{}, fmt.Errorf("%w: team %s has %d penguins, max %d", ErrParse, t, penguins[t.Index()], PenguinsPerTeam)
		}
	}
	if len(snap.Fish) != Teams {
		return State{}, fmt.Errorf("%w: fish has %d entries, want %d", ErrParse, len(snap.Fish), Teams)
	}
	for i, n := range snap.Fish {
		if n < 0 {
			return State{}, fmt.Errorf("%w: negative fish count %d for team %d", ErrParse, n, i)
		}
		s.Fish[i] = n
	}
	if snap.Turn < 0 {
		return State{}, fmt.Errorf("%w: negative turn %d", ErrParse, snap.Turn)
	}
	s.Turn = snap.Turn
	start, err := ParseTeam(snap.StartTeam)
	if err != nil {
		return State{}, fmt.Errorf("start team: %w", err)
	}
	s.StartTeam = start
	if snap.LastMove != nil {
		m := MoveFromDTO(*snap.LastMove)
		s.LastMove = &m
	}
	return s, nil
}

// Snapshot encodes s. Penguins are written as team names.
func (s *State) Snapshot() Snapshot {
	out := Snapshot{
		Board:     make([][]string, BoardSize),
		Turn:      s.Turn,
		Fish:      []int{s.Fish[0], s.Fish[1]},
		StartTeam: s.StartTeam.String(),
	}
	for y := 0; y < BoardSize; y++ {
		row := make([]string, BoardSize)
		for x := 0; x < BoardSize; x++ {
			f := s.Board[y*BoardSize+x]
			if t, ok := f.Penguin(); ok {
				row[x] = t.String()
			} else {
				row[x] = strconv.Itoa(f.Fish())
			}
		}
		out.Board[y] = row
	}
	if s.LastMove != nil {
		d := s.LastMove.DTO()
		out.LastMove = &d
	}
	return out
}
