package rules

import (
	"github.com/JakobRinke/FishAI/game"
)

// Undo holds what Perform overwrote. Team is the team that moved; it is not
// re-derived on undo because the skip rule makes it differ from turn parity.
type Undo struct {
	Team     game.Team
	From     game.Field
	To       game.Field
	Catch    int
	LastMove *game.Move
}

// Validate checks m against the current position without changing it.
func Validate(state *game.State, m game.Move) error {
	return validate(state, m, CurrentTeam(state))
}

func validate(state *game.State, m game.Move, t game.Team) error {
	placed := PenguinsPlaced(state, t)

	if m.IsPlacement() {
		if placed >= game.PenguinsPerTeam {
			return illegal(ErrPlaceAfterPlacement, m, t)
		}
		f, ok := state.Board.Get(m.To)
		if !ok {
			return illegal(ErrOutOfBounds, m, t)
		}
		if f.IsOccupied() {
			return illegal(ErrTargetOccupied, m, t)
		}
		if f.Fish() != 1 {
			return illegal(ErrPlacementFish, m, t)
		}
		return nil
	}

	if placed < game.PenguinsPerTeam {
		return illegal(ErrSlideBeforePlacement, m, t)
	}
	src, ok := state.Board.Get(*m.From)
	if !ok || !m.To.InBounds() {
		return illegal(ErrOutOfBounds, m, t)
	}
	if owner, ok := src.Penguin(); !ok || owner != t {
		return illegal(ErrNotOwnPenguin, m, t)
	}
	dir, n, ok := game.IsStraight(m.To.Sub(*m.From))
	if !ok {
		return illegal(ErrNotStraight, m, t)
	}
	for i := 1; i < n; i++ {
		if state.Board.FishAt(m.From.Add(dir.Scale(i))) == 0 {
			return illegal(ErrBlockedPath, m, t)
		}
	}
	dst := state.Board.At(m.To)
	if dst.IsOccupied() {
		return illegal(ErrTargetOccupied, m, t)
	}
	if dst.Fish() == 0 {
		return illegal(ErrTargetEmpty, m, t)
	}
	return nil
}

// Perform applies m for the current team and returns what is needed to take
// it back. The state is unchanged when an error is returned.
func Perform(state *game.State, m game.Move) (Undo, error) {
	t := CurrentTeam(state)
	if err := validate(state, m, t); err != nil {
		return Undo{}, err
	}
	u := Undo{Team: t, To: state.Board.At(m.To), LastMove: state.LastMove}

	if m.From != nil {
		u.From = state.Board.At(*m.From)
		state.Board.Set(*m.From, game.EmptyField)
	}
	u.Catch = state.Board.Ptr(m.To).Place(t)
	state.Fish[t.Index()] += u.Catch

	last := m.Clone()
	state.LastMove = &last
	state.Turn++
	return u, nil
}

// UndoMove reverts a move previously applied with Perform.
func UndoMove(state *game.State, m game.Move, u Undo) {
	state.Turn--
	state.Fish[u.Team.Index()] -= u.Catch
	state.Board.Set(m.To, u.To)
	if m.From != nil {
		state.Board.Set(*m.From, u.From)
	}
	state.LastMove = u.LastMove
}

// Child returns a copy of state with m applied.
func Child(state *game.State, m game.Move) (game.State, error) {
	next := state.Clone()
	if _, err := Perform(&next, m); err != nil {
		return game.State{}, err
	}
	return next, nil
}
