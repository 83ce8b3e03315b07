package game

import (
	"fmt"
	"strings"
)

// Team identifies one of the two players.
type Team uint8

const (
	One Team = iota
	Two
)

// AllTeams lists both teams in index order.
var AllTeams = [Teams]Team{One, Two}

func (t Team) Opponent() Team {
	if t == One {
		return Two
	}
	return One
}

// Index is the team's slot in per-team arrays such as State.Fish.
func (t Team) Index() int { return int(t) }

// Letter is the single-character board token for the team's penguins.
func (t Team) Letter() rune {
	if t == One {
		return 'R'
	}
	return 'B'
}

func (t Team) String() string {
	if t == One {
		return "ONE"
	}
	return "TWO"
}

func TeamFromLetter(r rune) (Team, bool) {
	switch r {
	case 'R', 'r':
		return One, true
	case 'B', 'b':
		return Two, true
	}
	return 0, false
}

// ParseTeam accepts ONE/TWO (any case) or a board letter.
func ParseTeam(s string) (Team, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ONE", "R":
		return One, nil
	case "TWO", "B":
		return Two, nil
	}
	return 0, fmt.Errorf("%w: not a team: %q", ErrParse, s)
}
