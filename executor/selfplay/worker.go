package selfplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
	"github.com/JakobRinke/FishAI/store"
)

const Source = "selfplay"

// ErrAborted is returned when the context ends before the game does.
var ErrAborted = errors.New("game aborted")

type GameResult struct {
	Winner string
	Fish   [game.Teams]int
	Turns  int
}

type GameOptions struct {
	GameID string
	Seed   int64
	// Engines plays for One and Two. A single non-nil engine plays both.
	Engines  [game.Teams]*search.Engine
	Settings game.FloeSettings
	// StartTeam is drawn from the seed when nil.
	StartTeam *game.Team
	// RandomOpening plays this many first moves uniformly at random to
	// diversify recorded games.
	RandomOpening int
	Verbose       bool
	OnStep        func()
	Logger        *slog.Logger
}

type GameOutcome struct {
	Rows   []store.ArchiveTurnRow
	Result GameResult
}

func (o GameOptions) engine(t game.Team) (*search.Engine, error) {
	if e := o.Engines[t.Index()]; e != nil {
		return e, nil
	}
	if e := o.Engines[t.Opponent().Index()]; e != nil {
		return e, nil
	}
	return nil, errors.New("no engine configured")
}

// PlayGame plays one game to completion on a freshly generated board. Every
// row carries the final outcome. Cancelling ctx discards the partial game.
func PlayGame(ctx context.Context, opts GameOptions) (GameOutcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	settings := opts.Settings
	if settings.MaxFish == 0 {
		settings = game.DefaultFloeSettings
	}

	start := game.AllTeams[rng.Intn(game.Teams)]
	if opts.StartTeam != nil {
		start = *opts.StartTeam
	}
	state := game.NewRandomState(rng, settings, start, uint64(seed))

	gameID := opts.GameID
	if gameID == "" {
		gameID = fmt.Sprintf("selfplay_%d", seed)
	}
	logger = logger.With("game_id", gameID)

	rows := make([]store.ArchiveTurnRow, 0, 64)
	for !rules.IsGameOver(&state) {
		if err := ctx.Err(); err != nil {
			return GameOutcome{}, fmt.Errorf("%w at turn %d: %w", ErrAborted, state.Turn, err)
		}
		if opts.Verbose {
			PrintBoard(&state)
		}

		team := rules.CurrentTeam(&state)
		var res search.Result
		if state.Turn < opts.RandomOpening {
			moves := rules.PossibleMoves(&state)
			if len(moves) == 0 {
				return GameOutcome{}, fmt.Errorf("turn %d: %w", state.Turn, search.ErrNoLegalMove)
			}
			res = search.Result{Move: moves[rng.Intn(len(moves))], Reason: "random"}
		} else {
			engine, err := opts.engine(team)
			if err != nil {
				return GameOutcome{}, err
			}
			res, err = engine.BestMove(ctx, &state)
			if err != nil {
				return GameOutcome{}, fmt.Errorf("turn %d: %w", state.Turn, err)
			}
		}

		rows = append(rows, RecordTurn(gameID, Source, &state, res))
		logger.Debug("turn",
			"turn", state.Turn,
			"team", team.String(),
			"move", res.Move.String(),
			"score", res.Score,
			"depth", res.Depth,
		)

		if _, err := rules.Perform(&state, res.Move); err != nil {
			return GameOutcome{}, fmt.Errorf("turn %d: engine chose %v: %w", state.Turn, res.Move, err)
		}
		if opts.OnStep != nil {
			opts.OnStep()
		}
	}

	LabelOutcome(rows, &state)
	result := GameResult{Winner: "DRAW", Fish: state.Fish, Turns: state.Turn}
	if len(rows) > 0 {
		result.Winner = rows[0].Winner
	}
	logger.Info("game finished", "winner", result.Winner, "fish_one", state.Fish[0], "fish_two", state.Fish[1], "turns", state.Turn)
	return GameOutcome{Rows: rows, Result: result}, nil
}
