package eval

import (
	"github.com/JakobRinke/FishAI/game"
)

// Spot classifies the shape of the fish tiles around a penguin.
type Spot byte

const (
	SpotYellow Spot = 'y'
	SpotWhite  Spot = 'w'
	SpotRed    Spot = 'r'
	SpotBlack  Spot = 'b'
)

var spotScores = map[Spot]float64{
	SpotYellow: 0.85,
	SpotWhite:  -0.6,
	SpotRed:    0.3,
	SpotBlack:  -1.1,
}

// ClassifySpot walks the six neighbours of p in direction order.
func ClassifySpot(s *game.State, p game.Doubled) Spot {
	var open [6]bool
	for i, nb := range p.HexNeighbors() {
		open[i] = s.Board.FishAt(nb) > 0
	}

	count := 0
	red := false
	black := true
	emptyMirror := false
	mirror := true
	for i := 0; i < 6; i++ {
		next, prev, opposite := open[(i+1)%6], open[(i+5)%6], open[(i+3)%6]
		switch {
		case open[i] && next:
			count++
			black = false
		case open[i] && !prev:
			count++
			red = true
		case !open[i] && !opposite:
			emptyMirror = true
		case !open[i] && opposite:
			mirror = false
		}
	}
	if emptyMirror && count == 2 {
		red = true
	}

	switch {
	case count == 1 && red:
		return SpotYellow
	case black && !mirror:
		return SpotBlack
	case red:
		return SpotRed
	}
	return SpotWhite
}

func SpotScore(s *game.State, p game.Doubled) float64 {
	return spotScores[ClassifySpot(s, p)]
}

// SpotScores sums the spot scores of every penguin of t.
func SpotScores(s *game.State, t game.Team) float64 {
	total := 0.0
	for _, p := range s.Board.PenguinsOf(t) {
		total += SpotScore(s, p)
	}
	return total
}
