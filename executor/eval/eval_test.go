package eval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JakobRinke/FishAI/game"
)

const fixtureBoard = `
00000000
0000000R
00000B00
0B000000
10R0R102
00010000
001000B0
1R0100B0
`

func fixtureState(t *testing.T) game.State {
	t.Helper()
	b, err := game.ParseBoard(fixtureBoard)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	return game.State{Board: b, Turn: 57, Fish: [2]int{20, 17}, StartTeam: game.One}
}

func TestWeighted_PerspectiveIsAntisymmetric(t *testing.T) {
	ev, err := NewWeighted(DefaultWeights)
	if err != nil {
		t.Fatalf("NewWeighted: %v", err)
	}
	s := fixtureState(t)
	self := ev.Evaluate(&s, Self)
	opp := ev.Evaluate(&s, Opponent)
	if self != -opp {
		t.Fatalf("self=%v opponent=%v", self, opp)
	}
	t.Logf("breakdown: %v", ev.Breakdown(&s, Self))
}

func TestWeighted_FishOnly(t *testing.T) {
	ev, err := NewWeighted(Weights{FeatureFish: 1, FeatureSpots: 0})
	if err != nil {
		t.Fatalf("NewWeighted: %v", err)
	}
	s := fixtureState(t)
	// Team One is to move since Two is stuck.
	if got := ev.Evaluate(&s, Self); got != 3 {
		t.Fatalf("fish eval=%v want=3", got)
	}
}

func TestNewWeighted_UnknownFeature(t *testing.T) {
	if _, err := NewWeighted(Weights{"vibes": 1}); err == nil {
		t.Fatalf("expected error for unknown feature")
	}
}

func TestLoadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	if err := os.WriteFile(path, []byte(`{"fish": 2, "mobility": 0.5}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("LoadWeights: %v", err)
	}
	if w[FeatureFish] != 2 || w[FeatureMobility] != 0.5 || len(w) != 2 {
		t.Fatalf("weights=%v", w)
	}
	if _, err := LoadWeights(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFeatures_Fixture(t *testing.T) {
	s := fixtureState(t)
	if got := immobile(&s, game.Two); got != 4 {
		t.Fatalf("immobile two=%v want=4", got)
	}
	if got := immobile(&s, game.One); got != 2 {
		t.Fatalf("immobile one=%v want=2", got)
	}
	if got := mobility(&s, game.One); got != 4 {
		t.Fatalf("mobility one=%v want=4", got)
	}
	if got := mobility(&s, game.Two); got != 0 {
		t.Fatalf("mobility two=%v want=0", got)
	}
	vec := Vector(&s, game.One)
	if len(vec) != len(FeatureNames) {
		t.Fatalf("vector len=%d want=%d", len(vec), len(FeatureNames))
	}
	if vec[0] != 3 {
		t.Fatalf("fish feature=%v want=3", vec[0])
	}
}

func TestClassifySpot(t *testing.T) {
	full, _ := game.ParseBoard(`
		11111111
		11111111
		11111111
		111R1111
		11111111
		11111111
		11111111
		11111111
	`)
	s := game.State{Board: full}
	center := game.Direct{X: 3, Y: 3}.ToDoubled()
	if got := ClassifySpot(&s, center); got != SpotWhite {
		t.Fatalf("surrounded spot=%c want=w", got)
	}

	// Only the up-left neighbour has fish.
	var lone game.Board
	lone.Set(center, game.FieldWithPenguin(game.One))
	lone.Set(center.Add(game.UpLeft), game.FieldWithFish(2))
	s = game.State{Board: lone}
	if got := ClassifySpot(&s, center); got != SpotYellow {
		t.Fatalf("single exit spot=%c want=y", got)
	}
	if got := SpotScore(&s, center); got != 0.85 {
		t.Fatalf("score=%v want=0.85", got)
	}
}

func TestPlayoutFeature_Deterministic(t *testing.T) {
	s := game.NewRandomState(nil, game.DefaultFloeSettings, game.One, 11)
	before := s.Board
	a := playoutFeature(&s, game.One)
	b := playoutFeature(&s, game.One)
	if a != b {
		t.Fatalf("playout differs: %v vs %v", a, b)
	}
	if a < -1 || a > 1 {
		t.Fatalf("playout=%v out of range", a)
	}
	if s.Board != before {
		t.Fatalf("playout modified the state")
	}
}
