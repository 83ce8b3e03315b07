package rules

import (
	"errors"
	"fmt"

	"github.com/JakobRinke/FishAI/game"
)

var (
	ErrSlideBeforePlacement = errors.New("cannot slide until all penguins have been placed")
	ErrPlaceAfterPlacement  = errors.New("cannot place after all penguins have been placed")
	ErrPlacementFish        = errors.New("cannot place on more than one fish")
	ErrNotOwnPenguin        = errors.New("no penguin of the moving team on the source tile")
	ErrNotStraight          = errors.New("can only move in straight lines")
	ErrBlockedPath          = errors.New("path crosses a tile without fish")
	ErrOutOfBounds          = errors.New("coordinate is off the board")
	ErrTargetOccupied       = errors.New("target tile is occupied")
	ErrTargetEmpty          = errors.New("target tile has no fish")
)

// MoveError reports an illegal move. Kind is one of the Err* sentinels above
// and is matched by errors.Is.
type MoveError struct {
	Kind error
	Move game.Move
	Team game.Team
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("illegal move %s by %s: %v", e.Move, e.Team, e.Kind)
}

func (e *MoveError) Unwrap() error { return e.Kind }

func illegal(kind error, m game.Move, t game.Team) error {
	return &MoveError{Kind: kind, Move: m, Team: t}
}
