package eval

import (
	"github.com/JakobRinke/FishAI/game"
)

// Feature returns the advantage of team over its opponent.
type Feature func(s *game.State, team game.Team) float64

const (
	FeatureFish         = "fish"
	FeatureMobility     = "mobility"
	FeatureNeighborFish = "neighbor_fish"
	FeatureReachable    = "reachable"
	FeatureSpots        = "spots"
	FeatureImmobile     = "immobile_penguins"
	FeaturePlayout      = "playout"
)

var features = map[string]Feature{
	FeatureFish:         fishDiff,
	FeatureMobility:     diff(mobility),
	FeatureNeighborFish: diff(neighborFish),
	FeatureReachable:    diff(reachable),
	FeatureSpots:        diff(SpotScores),
	FeatureImmobile:     func(s *game.State, t game.Team) float64 { return immobile(s, t.Opponent()) - immobile(s, t) },
	FeaturePlayout:      playoutFeature,
}

// FeatureNames lists the deterministic features in recording order.
var FeatureNames = []string{
	FeatureFish,
	FeatureMobility,
	FeatureNeighborFish,
	FeatureReachable,
	FeatureSpots,
	FeatureImmobile,
}

// Vector evaluates every name in FeatureNames for team.
func Vector(s *game.State, team game.Team) []float32 {
	out := make([]float32, len(FeatureNames))
	for i, name := range FeatureNames {
		out[i] = float32(features[name](s, team))
	}
	return out
}

func diff(f func(*game.State, game.Team) float64) Feature {
	return func(s *game.State, t game.Team) float64 {
		return f(s, t) - f(s, t.Opponent())
	}
}

func fishDiff(s *game.State, t game.Team) float64 {
	return float64(s.FishOf(t) - s.FishOf(t.Opponent()))
}

func mobility(s *game.State, t game.Team) float64 {
	n := 0
	for _, p := range s.Board.PenguinsOf(t) {
		n += len(s.Board.PossibleMovesFrom(p))
	}
	return float64(n)
}

func neighborFish(s *game.State, t game.Team) float64 {
	n := 0
	for _, p := range s.Board.PenguinsOf(t) {
		for _, nb := range p.HexNeighbors() {
			n += s.Board.FishAt(nb)
		}
	}
	return float64(n)
}

// reachable counts the fish on tiles connected to the team's penguins through
// tiles that still carry fish.
func reachable(s *game.State, t game.Team) float64 {
	var seen [game.BoardFields]bool
	queue := make([]game.Doubled, 0, game.BoardFields)
	for _, p := range s.Board.PenguinsOf(t) {
		queue = append(queue, p)
	}
	total := 0
	for len(queue) > 0 {
		p := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for _, nb := range p.HexNeighbors() {
			fish := s.Board.FishAt(nb)
			if fish == 0 {
				continue
			}
			idx := nb.ToDirect().Index()
			if seen[idx] {
				continue
			}
			seen[idx] = true
			total += fish
			queue = append(queue, nb)
		}
	}
	return float64(total)
}

func immobile(s *game.State, t game.Team) float64 {
	n := 0
	for _, p := range s.Board.PenguinsOf(t) {
		stuck := true
		for _, nb := range p.HexNeighbors() {
			if s.Board.FishAt(nb) > 0 {
				stuck = false
				break
			}
		}
		if stuck {
			n++
		}
	}
	return float64(n)
}
