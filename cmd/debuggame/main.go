// Package main plays a single engine-vs-engine game, optionally with a
// different weights file per team, prints every position and archives the
// game so it can be replayed in the viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/executor/selfplay"
	"github.com/JakobRinke/FishAI/logging"
	"github.com/JakobRinke/FishAI/store"
)

func loadEngine(weightsPath string, cfg search.Config) (*search.Engine, error) {
	weights := eval.DefaultWeights
	if strings.TrimSpace(weightsPath) != "" {
		var err error
		if weights, err = eval.LoadWeights(weightsPath); err != nil {
			return nil, err
		}
	}
	ev, err := eval.NewWeighted(weights)
	if err != nil {
		return nil, err
	}
	return search.NewEngine(ev, cfg, nil), nil
}

func main() {
	seed := flag.Int64("seed", 0, "Board and start team seed (0 = time based)")
	budget := flag.Duration("budget", 500*time.Millisecond, "Search budget per move")
	maxDepth := flag.Int("max-depth", search.DefaultConfig.MaxDepth, "Maximum search depth")
	weightsOne := flag.String("weights-one", "", "Weights file for team ONE (default weights when empty)")
	weightsTwo := flag.String("weights-two", "", "Weights file for team TWO (default weights when empty)")
	randomOpening := flag.Int("random-opening", 0, "Number of random opening moves")
	outDir := flag.String("out-dir", filepath.Join("data", "debug_games"), "Output directory for the archived game")
	viewerHost := flag.String("viewer", "http://127.0.0.1:8090", "Viewer base URL")
	quiet := flag.Bool("quiet", false, "Do not print the board before every move")
	logLevel := flag.String("log-level", "debug", "Log level")
	flag.Parse()

	logger, err := logging.New(os.Stderr, "compact", *logLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}

	cfg := search.Config{MaxDepth: *maxDepth, Budget: *budget}
	var engines [2]*search.Engine
	for i, path := range []string{*weightsOne, *weightsTwo} {
		if engines[i], err = loadEngine(path, cfg); err != nil {
			log.Fatalf("engine %d: %v", i+1, err)
		}
		engines[i].Logger = logger
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	out, err := selfplay.PlayGame(ctx, selfplay.GameOptions{
		Seed:          *seed,
		Engines:       engines,
		RandomOpening: *randomOpening,
		Verbose:       !*quiet,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("Failed to play debug game: %v", err)
	}
	res := out.Result
	log.Printf("Game complete: %d turns, fish %d:%d, winner: %s", res.Turns, res.Fish[0], res.Fish[1], res.Winner)

	path, err := store.WriteArchiveBatchParquetAtomic(*outDir, out.Rows)
	if err != nil {
		log.Fatalf("Failed to write debug game: %v", err)
	}
	log.Printf("Debug game written to: %s", path)

	gameID := out.Rows[0].GameID
	fmt.Println()
	fmt.Printf("Replay: %s/games/%s\n", strings.TrimRight(*viewerHost, "/"), gameID)
	fmt.Printf("Start the viewer with: go run ./cmd/viewer -data-dirs %s\n", *outDir)
}
