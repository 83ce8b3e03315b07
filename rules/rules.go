package rules

import (
	"github.com/JakobRinke/FishAI/game"
)

// CurrentTeamFromTurn is the team whose turn it is by parity alone.
func CurrentTeamFromTurn(state *game.State) game.Team {
	if state.Turn%2 == 0 {
		return state.StartTeam
	}
	return state.StartTeam.Opponent()
}

// Immovable reports whether the teams matched by filter (both when nil) have
// all their penguins on the board and none of them touches a tile with fish.
// A team still placing is never immovable.
func Immovable(state *game.State, filter *game.Team) bool {
	teams := game.Teams
	if filter != nil {
		teams = 1
	}
	count := 0
	for _, p := range state.Board.Penguins() {
		if filter != nil && p.Team != *filter {
			continue
		}
		count++
		for _, n := range p.Pos.HexNeighbors() {
			if state.Board.FishAt(n) > 0 {
				return false
			}
		}
	}
	return count == teams*game.PenguinsPerTeam
}

func TeamImmovable(state *game.State, t game.Team) bool {
	return Immovable(state, &t)
}

func AllImmovable(state *game.State) bool {
	return Immovable(state, nil)
}

// CurrentTeam is the team to move. When the parity team is stuck, the turn
// passes to its opponent.
func CurrentTeam(state *game.State) game.Team {
	t := CurrentTeamFromTurn(state)
	if TeamImmovable(state, t) {
		return t.Opponent()
	}
	return t
}

func PenguinsPlaced(state *game.State, t game.Team) int {
	n := 0
	for i := range state.Board {
		if team, ok := state.Board[i].Penguin(); ok && team == t {
			n++
		}
	}
	return n
}

// PossibleMoves returns the legal moves of the current team. While the team
// still has penguins to place these are placements onto every single-fish
// tile, otherwise the slides of its penguins in row-major order.
func PossibleMoves(state *game.State) []game.Move {
	t := CurrentTeam(state)
	if PenguinsPlaced(state, t) < game.PenguinsPerTeam {
		moves := make([]game.Move, 0, 16)
		state.Board.Fields(func(p game.Doubled, f game.Field) bool {
			if f.Fish() == 1 {
				moves = append(moves, game.Placing(p))
			}
			return true
		})
		return moves
	}

	moves := make([]game.Move, 0, 32)
	for _, p := range state.Board.PenguinsOf(t) {
		moves = append(moves, state.Board.PossibleMovesFrom(p)...)
	}
	return moves
}

// IsGameOver returns true once neither team can move.
func IsGameOver(state *game.State) bool {
	return AllImmovable(state)
}

// Winner returns the team with more fish. The bool is false while the game
// is running and on a draw.
func Winner(state *game.State) (game.Team, bool) {
	if !IsGameOver(state) {
		return 0, false
	}
	switch {
	case state.Fish[0] > state.Fish[1]:
		return game.One, true
	case state.Fish[1] > state.Fish[0]:
		return game.Two, true
	}
	return 0, false
}

// Result is +1 for a win of t, -1 for a loss and 0 for a draw or a running
// game.
func Result(state *game.State, t game.Team) float32 {
	w, ok := Winner(state)
	if !ok {
		return 0
	}
	if w == t {
		return 1
	}
	return -1
}
