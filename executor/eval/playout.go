package eval

import (
	"hash/fnv"
	"math/rand"

	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
)

// PlayoutsPerEval is the number of random games averaged by the playout
// feature.
const PlayoutsPerEval = 10

// RandomPlayout plays uniformly random moves on s until the game ends and
// returns +1, 0 or -1 from team's side. Moves are undone before returning,
// so s is left as it was.
func RandomPlayout(s *game.State, team game.Team, rng *rand.Rand) int {
	if rules.IsGameOver(s) {
		return int(rules.Result(s, team))
	}
	moves := rules.PossibleMoves(s)
	if len(moves) == 0 {
		// Stuck in placement with no single-fish tile left.
		return 0
	}
	m := moves[rng.Intn(len(moves))]
	u, err := rules.Perform(s, m)
	if err != nil {
		return 0
	}
	r := RandomPlayout(s, team, rng)
	rules.UndoMove(s, m, u)
	return r
}

// playoutFeature seeds its generator from the position so that repeated
// evaluations of the same state agree.
func playoutFeature(s *game.State, t game.Team) float64 {
	rng := rand.New(rand.NewSource(int64(stateSeed(s))))
	total := 0
	for i := 0; i < PlayoutsPerEval; i++ {
		total += RandomPlayout(s, t, rng)
	}
	return float64(total) / PlayoutsPerEval
}

func stateSeed(s *game.State) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s.Board.String()))
	h.Write([]byte{byte(s.Turn), byte(s.Fish[0]), byte(s.Fish[1]), byte(s.StartTeam)})
	return h.Sum64()
}
