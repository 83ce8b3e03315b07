// Package search picks moves with a time-bounded iterative-deepening
// alpha-beta search.
//
// Every depth runs in its own goroutine on a private copy of the position.
// The controller polls for the result and cancels a depth that overruns the
// budget. Depth 1 is always awaited, so a move is returned even when the
// budget is smaller than a single ply.
package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
)

var (
	ErrNoLegalMove = errors.New("no legal move")
	ErrGameOver    = errors.New("game is over")
)

// StopReason says why iterative deepening ended.
type StopReason string

const (
	StopConverged StopReason = "converged"
	StopTimeout   StopReason = "timeout"
	StopMaxDepth  StopReason = "max_depth"
	StopCancelled StopReason = "cancelled"
	StopForced    StopReason = "forced"
)

type Config struct {
	MaxDepth     int
	Budget       time.Duration
	PollInterval time.Duration
}

var DefaultConfig = Config{
	MaxDepth:     32,
	Budget:       1800 * time.Millisecond,
	PollInterval: 5 * time.Millisecond,
}

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultConfig.MaxDepth
	}
	if c.Budget <= 0 {
		c.Budget = DefaultConfig.Budget
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultConfig.PollInterval
	}
	return c
}

// Engine is safe for concurrent use; each BestMove call owns its workers.
type Engine struct {
	Evaluator eval.Evaluator
	Config    Config
	Logger    *slog.Logger
}

func NewEngine(evaluator eval.Evaluator, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{Evaluator: evaluator, Config: cfg, Logger: logger}
}

// Result is the best move found and how the search got there.
type Result struct {
	Move    game.Move
	Score   float64
	Depth   int
	Reason  StopReason
	Elapsed time.Duration
	Nodes   int64
	Depths  []DepthResult
}

type outcome struct {
	res DepthResult
	err error
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// BestMove searches state for the current team. state is not modified.
func (e *Engine) BestMove(ctx context.Context, state *game.State) (Result, error) {
	if rules.IsGameOver(state) {
		return Result{}, ErrGameOver
	}
	moves := rules.PossibleMoves(state)
	if len(moves) == 0 {
		return Result{}, ErrNoLegalMove
	}

	cfg := e.Config.withDefaults()
	log := e.logger()
	start := time.Now()
	deadline := start.Add(cfg.Budget)

	if len(moves) == 1 {
		return Result{Move: moves[0], Reason: StopForced, Elapsed: time.Since(start)}, nil
	}

	var (
		best      Result
		order     []int
		reason    = StopMaxDepth
		done      = ctx.Done()
		cancelled bool
	)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

iterate:
	for depth := 1; depth <= cfg.MaxDepth; depth++ {
		if depth > 1 && !time.Now().Before(deadline) {
			reason = StopTimeout
			break
		}

		// Depth 1 ignores the deadline and caller cancellation.
		parent := ctx
		if depth == 1 {
			parent = context.WithoutCancel(ctx)
		}
		wctx, cancel := context.WithCancel(parent)
		ch := make(chan outcome, 1)
		root := state.Clone()
		go func(depth int, order []int) {
			res, err := Search(wctx, e.Evaluator, &root, depth, order)
			ch <- outcome{res: res, err: err}
		}(depth, order)

		var out outcome
	wait:
		for {
			select {
			case out = <-ch:
				break wait
			case <-ticker.C:
				if depth > 1 && !time.Now().Before(deadline) {
					cancel()
					log.Debug("search depth abandoned", "depth", depth, "elapsed", time.Since(start))
					reason = StopTimeout
					break iterate
				}
			case <-done:
				if depth > 1 {
					cancel()
					reason = StopCancelled
					break iterate
				}
				done = nil
				cancelled = true
			}
		}
		cancel()

		if out.err != nil {
			if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
				reason = StopCancelled
				break
			}
			return Result{}, out.err
		}
		if depth > 1 && time.Now().After(deadline) {
			// Finished late; the previous depth stands.
			reason = StopTimeout
			break
		}

		r := out.res
		best.Move = r.Move
		best.Score = r.Score
		best.Depth = r.Depth
		best.Nodes += r.Nodes
		best.Depths = append(best.Depths, r)
		order = r.Order
		log.Debug("search depth done",
			"depth", r.Depth,
			"move", r.Move.String(),
			"score", r.Score,
			"nodes", r.Nodes,
			"complete", r.Complete,
			"elapsed", time.Since(start),
		)

		if r.Complete || r.Proven() {
			reason = StopConverged
			break
		}
		if cancelled {
			reason = StopCancelled
			break
		}
	}

	best.Reason = reason
	best.Elapsed = time.Since(start)
	log.Info("search finished",
		"turn", state.Turn,
		"team", rules.CurrentTeam(state).String(),
		"move", best.Move.String(),
		"score", best.Score,
		"depth", best.Depth,
		"reason", string(best.Reason),
		"nodes", best.Nodes,
		"elapsed", best.Elapsed,
	)
	return best, nil
}
