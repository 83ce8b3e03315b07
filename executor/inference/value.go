package inference

import (
	"log/slog"
	"sync/atomic"

	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/game"
)

// Predictor returns a value in [-1, 1] for ego.
type Predictor interface {
	Predict(state *game.State, ego game.Team) (float32, error)
}

// DefaultValueScale maps the network output onto roughly the same range as
// the weighted evaluator's fish differences.
const DefaultValueScale = 20.0

// ValueEvaluator adapts a Predictor to eval.Evaluator. Failed predictions
// fall back to the wrapped evaluator.
type ValueEvaluator struct {
	Predictor Predictor
	Fallback  eval.Evaluator
	Scale     float64
	Logger    *slog.Logger

	failures atomic.Int64
}

func NewValueEvaluator(p Predictor, fallback eval.Evaluator, logger *slog.Logger) *ValueEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValueEvaluator{Predictor: p, Fallback: fallback, Scale: DefaultValueScale, Logger: logger}
}

func (v *ValueEvaluator) Evaluate(s *game.State, p eval.Perspective) float64 {
	value, err := v.Predictor.Predict(s, p.Team(s))
	if err != nil {
		// Log the first failure and then every thousandth.
		if n := v.failures.Add(1); n == 1 || n%1000 == 0 {
			v.Logger.Warn("value prediction failed, using fallback", "err", err, "failures", n)
		}
		if v.Fallback == nil {
			return 0
		}
		return v.Fallback.Evaluate(s, p)
	}
	return float64(value) * v.Scale
}

// Failures counts predictions that fell back.
func (v *ValueEvaluator) Failures() int64 { return v.failures.Load() }
