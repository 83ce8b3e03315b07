// Package eval scores non-terminal positions for the search.
//
// Scores are differential: positive values favour the team selected by the
// perspective. The weighted evaluator combines named features so that tuning
// is a matter of editing a weights file.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
)

// Perspective selects whose advantage a score measures, relative to the
// state's current team.
type Perspective int

const (
	Self     Perspective = 1
	Opponent Perspective = -1
)

// Team resolves the perspective to a concrete team.
func (p Perspective) Team(s *game.State) game.Team {
	t := rules.CurrentTeam(s)
	if p == Opponent {
		return t.Opponent()
	}
	return t
}

// Evaluator scores a position from the perspective's side.
type Evaluator interface {
	Evaluate(s *game.State, p Perspective) float64
}

type EvaluatorFunc func(s *game.State, p Perspective) float64

func (f EvaluatorFunc) Evaluate(s *game.State, p Perspective) float64 { return f(s, p) }

// Weights maps feature names to their coefficients.
type Weights map[string]float64

// DefaultWeights is a hand-tuned starting point.
var DefaultWeights = Weights{
	FeatureFish:         1.0,
	FeatureMobility:     0.1,
	FeatureNeighborFish: 0.35,
	FeatureReachable:    0.25,
	FeatureSpots:        0.5,
	FeatureImmobile:     0.9,
}

// LoadWeights reads a JSON object of feature name to weight.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode weights %s: %w", path, err)
	}
	return w, nil
}

type term struct {
	name   string
	weight float64
	fn     Feature
}

// Weighted is a linear combination of named features.
type Weighted struct {
	terms []term
}

// NewWeighted builds an evaluator. Unknown feature names are an error; zero
// weights are dropped.
func NewWeighted(w Weights) (*Weighted, error) {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &Weighted{}
	for _, name := range names {
		fn, ok := features[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		if w[name] == 0 {
			continue
		}
		out.terms = append(out.terms, term{name: name, weight: w[name], fn: fn})
	}
	return out, nil
}

func (e *Weighted) Evaluate(s *game.State, p Perspective) float64 {
	team := p.Team(s)
	score := 0.0
	for _, t := range e.terms {
		score += t.weight * t.fn(s, team)
	}
	return score
}

// Breakdown returns each weighted term for logging.
func (e *Weighted) Breakdown(s *game.State, p Perspective) map[string]float64 {
	team := p.Team(s)
	out := make(map[string]float64, len(e.terms))
	for _, t := range e.terms {
		out[t.name] = t.weight * t.fn(s, team)
	}
	return out
}
