package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
)

// DepthResult is the outcome of one fixed-depth root search.
type DepthResult struct {
	Depth int
	Move  game.Move
	Score float64
	// Moves are the root moves in generation order. Scores is indexed the
	// same way; Order lists move indices best first.
	Moves  []game.Move
	Scores []float64
	Order  []int
	Nodes  int64
	// Complete is set when no leaf was cut off by the depth limit, so a
	// deeper search would return the same value.
	Complete bool
}

// Proven reports a forced win or loss.
func (r DepthResult) Proven() bool {
	return math.IsInf(r.Score, 0)
}

// ProvenScore is the finite stand-in for a proven win when a score leaves the
// search, since JSON has no infinities.
const ProvenScore = 1e9

// ClampScore maps proven results to +-ProvenScore.
func ClampScore(v float64) float64 {
	switch {
	case v > ProvenScore:
		return ProvenScore
	case v < -ProvenScore:
		return -ProvenScore
	}
	return v
}

type worker struct {
	evaluator eval.Evaluator
	me        game.Team
	nodes     int64
	cutoff    bool
}

// Search runs a single alpha-beta search of the given depth from state. order
// gives the root move indices to try first; nil means generation order. state
// is left unchanged on return.
func Search(ctx context.Context, evaluator eval.Evaluator, state *game.State, depth int, order []int) (DepthResult, error) {
	if depth < 1 {
		return DepthResult{}, fmt.Errorf("search depth %d < 1", depth)
	}
	moves := rules.PossibleMoves(state)
	if len(moves) == 0 {
		return DepthResult{}, ErrNoLegalMove
	}
	order = normalizeOrder(order, len(moves))

	w := &worker{evaluator: evaluator, me: rules.CurrentTeam(state)}
	scores := make([]float64, len(moves))
	for i := range scores {
		scores[i] = math.Inf(-1)
	}

	alpha, beta := math.Inf(-1), math.Inf(1)
	best := -1
	for _, idx := range order {
		m := moves[idx]
		u, err := rules.Perform(state, m)
		if err != nil {
			return DepthResult{}, err
		}
		score, err := w.alphabeta(ctx, state, depth-1, alpha, beta)
		rules.UndoMove(state, m, u)
		if err != nil {
			return DepthResult{}, err
		}
		scores[idx] = score
		if best < 0 || score > scores[best] {
			best = idx
		}
		if score > alpha {
			alpha = score
		}
		if math.IsInf(score, 1) {
			break
		}
	}

	next := make([]int, len(order))
	copy(next, order)
	sort.SliceStable(next, func(i, j int) bool { return scores[next[i]] > scores[next[j]] })

	return DepthResult{
		Depth:    depth,
		Move:     moves[best],
		Score:    scores[best],
		Moves:    moves,
		Scores:   scores,
		Order:    next,
		Nodes:    w.nodes,
		Complete: !w.cutoff,
	}, nil
}

func normalizeOrder(order []int, n int) []int {
	if len(order) == n {
		out := make([]int, n)
		copy(out, order)
		return out
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// alphabeta returns the value of state for w.me. Plies do not strictly
// alternate because a stuck team is skipped, so the side to move decides
// whether a node maximizes.
func (w *worker) alphabeta(ctx context.Context, state *game.State, depth int, alpha, beta float64) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	w.nodes++

	if rules.IsGameOver(state) {
		winner, ok := rules.Winner(state)
		switch {
		case !ok:
			return 0, nil
		case winner == w.me:
			return math.Inf(1), nil
		default:
			return math.Inf(-1), nil
		}
	}

	current := rules.CurrentTeam(state)
	perspective := eval.Opponent
	if current == w.me {
		perspective = eval.Self
	}

	if depth <= 0 {
		w.cutoff = true
		return w.evaluator.Evaluate(state, perspective), nil
	}

	moves := rules.PossibleMoves(state)
	if len(moves) == 0 {
		return w.evaluator.Evaluate(state, perspective), nil
	}

	maximizing := current == w.me
	value := math.Inf(1)
	if maximizing {
		value = math.Inf(-1)
	}
	for _, m := range moves {
		u, err := rules.Perform(state, m)
		if err != nil {
			return 0, err
		}
		v, err := w.alphabeta(ctx, state, depth-1, alpha, beta)
		rules.UndoMove(state, m, u)
		if err != nil {
			return 0, err
		}
		if maximizing {
			value = math.Max(value, v)
			alpha = math.Max(alpha, value)
		} else {
			value = math.Min(value, v)
			beta = math.Min(beta, value)
		}
		if alpha >= beta {
			break
		}
	}
	return value, nil
}
