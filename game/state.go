// Package game defines the core state types for the penguin ice floe game.
//
// These types represent the minimal state needed for rules evaluation and
// search. State is a plain value so that copying it yields an independent
// position for worker goroutines.
package game

const (
	BoardSize       = 8
	BoardFields     = BoardSize * BoardSize
	Teams           = 2
	PenguinsPerTeam = 4
)

// State is a complete position. Fish is indexed by Team.Index().
type State struct {
	Board     Board
	Turn      int
	Fish      [Teams]int
	LastMove  *Move
	StartTeam Team
}

// NewState starts a game on board with team start to move first.
func NewState(board Board, start Team) State {
	return State{Board: board, StartTeam: start}
}

func (s *State) FishOf(t Team) int { return s.Fish[t.Index()] }

// Clone performs a deep copy of the state.
func (s *State) Clone() State {
	out := *s
	if s.LastMove != nil {
		m := s.LastMove.Clone()
		out.LastMove = &m
	}
	return out
}
