package selfplay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastEngine(t *testing.T) *search.Engine {
	t.Helper()
	ev, err := eval.NewWeighted(eval.Weights{eval.FeatureFish: 1, eval.FeatureMobility: 0.1})
	if err != nil {
		t.Fatalf("NewWeighted: %v", err)
	}
	return search.NewEngine(ev, search.Config{MaxDepth: 2, Budget: time.Minute}, quietLogger())
}

func TestPlayGame_RecordsEveryTurnWithOutcome(t *testing.T) {
	start := game.Two
	out, err := PlayGame(context.Background(), GameOptions{
		GameID:        "g1",
		Seed:          11,
		Engines:       [game.Teams]*search.Engine{fastEngine(t)},
		StartTeam:     &start,
		RandomOpening: 2,
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatalf("PlayGame: %v", err)
	}
	if len(out.Rows) == 0 || len(out.Rows) != out.Result.Turns {
		t.Fatalf("rows=%d turns=%d", len(out.Rows), out.Result.Turns)
	}
	if out.Rows[0].Team != "TWO" || out.Rows[0].StartTeam != "TWO" {
		t.Fatalf("first row team=%s start=%s", out.Rows[0].Team, out.Rows[0].StartTeam)
	}
	if out.Rows[0].Reason != "random" || !out.Rows[0].Placement {
		t.Fatalf("opening row reason=%q placement=%v", out.Rows[0].Reason, out.Rows[0].Placement)
	}

	wantWinner := "DRAW"
	switch {
	case out.Result.Fish[0] > out.Result.Fish[1]:
		wantWinner = "ONE"
	case out.Result.Fish[1] > out.Result.Fish[0]:
		wantWinner = "TWO"
	}
	if out.Result.Winner != wantWinner {
		t.Fatalf("winner=%s fish=%v", out.Result.Winner, out.Result.Fish)
	}

	for i, r := range out.Rows {
		if r.GameID != "g1" || int(r.Turn) != i {
			t.Fatalf("row %d: id=%s turn=%d", i, r.GameID, r.Turn)
		}
		if len(r.Features) != len(eval.FeatureNames) {
			t.Fatalf("row %d: %d features", i, len(r.Features))
		}
		var want float32
		switch {
		case wantWinner == "DRAW":
		case r.Team == wantWinner:
			want = 1
		default:
			want = -1
		}
		if r.Value != want || r.Winner != wantWinner {
			t.Fatalf("row %d team %s: value=%v winner=%s", i, r.Team, r.Value, r.Winner)
		}
		if _, err := r.State(); err != nil {
			t.Fatalf("row %d State: %v", i, err)
		}
	}
}

func TestPlayGame_SeedIsReproducible(t *testing.T) {
	opts := GameOptions{Seed: 5, Engines: [game.Teams]*search.Engine{fastEngine(t), fastEngine(t)}, Logger: quietLogger()}
	a, err := PlayGame(context.Background(), opts)
	if err != nil {
		t.Fatalf("PlayGame: %v", err)
	}
	b, err := PlayGame(context.Background(), opts)
	if err != nil {
		t.Fatalf("PlayGame: %v", err)
	}
	if len(a.Rows) != len(b.Rows) {
		t.Fatalf("lengths differ: %d vs %d", len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		if a.Rows[i].Board != b.Rows[i].Board || !a.Rows[i].Move().Equal(b.Rows[i].Move()) {
			t.Fatalf("games diverge at turn %d", i)
		}
	}
}

func TestPlayGame_CancelledDiscardsGame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := PlayGame(ctx, GameOptions{Seed: 1, Engines: [game.Teams]*search.Engine{fastEngine(t)}, Logger: quietLogger()})
	if !errors.Is(err, ErrAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if out.Rows != nil {
		t.Fatalf("partial rows returned")
	}
}

func TestPlayGame_NoEngine(t *testing.T) {
	_, err := PlayGame(context.Background(), GameOptions{Seed: 1, Logger: quietLogger()})
	if err == nil {
		t.Fatalf("expected error without engines")
	}
}

func TestPlayGame_RandomOpeningWithoutPlacements(t *testing.T) {
	// Enough holes to leave fewer single-fish tiles than penguins.
	_, err := PlayGame(context.Background(), GameOptions{
		Seed:          3,
		Engines:       [game.Teams]*search.Engine{fastEngine(t)},
		Settings:      game.FloeSettings{MaxFish: 1, Holes: 1000},
		RandomOpening: 2 * game.PenguinsPerTeam,
		Logger:        quietLogger(),
	})
	if !errors.Is(err, search.ErrNoLegalMove) {
		t.Fatalf("err=%v want ErrNoLegalMove", err)
	}
}

func TestRecordTurn_ClampsProvenScores(t *testing.T) {
	s := game.NewState(game.Board{}, game.One)
	s.Board[0] = game.FieldWithFish(1)
	m := game.Placing(game.Doubled{X: 0, Y: 0})
	res := search.Result{
		Move:   m,
		Score:  math.Inf(1),
		Depth:  1,
		Reason: search.StopConverged,
		Depths: []search.DepthResult{{Depth: 1, Move: m, Score: math.Inf(1), Complete: true}},
	}
	row := RecordTurn("g", "test", &s, res)

	var depths []store.DepthSummary
	if err := json.Unmarshal(row.SearchJSON, &depths); err != nil {
		t.Fatalf("search json: %v", err)
	}
	if len(depths) != 1 || depths[0].Score != 1e9 || depths[0].Move != "-> (0, 0)" {
		t.Fatalf("depths=%+v", depths)
	}
	if !row.Placement || row.FromX != -1 || row.Team != "ONE" {
		t.Fatalf("row=%+v", row)
	}
	if row.Score != search.ProvenScore {
		t.Fatalf("row score=%v want %v", row.Score, search.ProvenScore)
	}

	res.Score = math.Inf(-1)
	if row := RecordTurn("g", "test", &s, res); row.Score != -search.ProvenScore {
		t.Fatalf("lost row score=%v", row.Score)
	}
}

func TestRenderBoard_ShowsPenguinsAndLayers(t *testing.T) {
	s := game.NewState(game.Board{}, game.One)
	s.Board[0] = game.FieldWithPenguin(game.One)
	s.Board[1] = game.FieldWithFish(3)
	out := RenderBoard(&s)
	if !strings.Contains(out, "R 3 .") || !strings.Contains(out, "ego_penguins") {
		t.Fatalf("unexpected render:\n%s", out)
	}
}
