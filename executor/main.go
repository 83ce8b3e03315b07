package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/JakobRinke/FishAI/config"
	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/executor/inference"
	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/executor/selfplay"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/logging"
	"github.com/JakobRinke/FishAI/store"
)

var totalMoves atomic.Int64
var totalGames atomic.Int64

type countingEvaluator struct {
	eval.Evaluator
	calls atomic.Int64
}

func (c *countingEvaluator) Evaluate(s *game.State, p eval.Perspective) float64 {
	c.calls.Add(1)
	return c.Evaluator.Evaluate(s, p)
}

type GameUpdate struct {
	WorkerID int
	Result   selfplay.GameResult
	Rows     int
}

type gameWriteRequest struct {
	rows []store.ArchiveTurnRow
}

func main() {
	outDir := flag.String("out-dir", config.EnvOrDefault("FISHAI_OUT_DIR", "data/generated"), "Output directory for archive parquet batches")
	workers := flag.Int("workers", config.EnvIntOrDefault("FISHAI_WORKERS", 4), "Number of self-play workers")
	gamesPerFlush := flag.Int("games-per-flush", config.EnvIntOrDefault("FISHAI_GAMES_PER_FLUSH", 50), "Number of games per parquet file")
	maxGames := flag.Int64("max-games", int64(config.EnvIntOrDefault("FISHAI_MAX_GAMES", 0)), "If > 0, stop after generating this many games (across all workers)")
	budget := flag.Duration("budget", config.EnvDurationOrDefault("FISHAI_BUDGET", 200*time.Millisecond), "Search time budget per move")
	maxDepth := flag.Int("max-depth", config.EnvIntOrDefault("FISHAI_MAX_DEPTH", search.DefaultConfig.MaxDepth), "Maximum search depth")
	randomOpening := flag.Int("random-opening", config.EnvIntOrDefault("FISHAI_RANDOM_OPENING", 4), "Number of opening moves played at random")
	weightsPath := flag.String("weights", config.EnvOrDefault("FISHAI_WEIGHTS", ""), "JSON file of evaluator feature weights")
	modelPath := flag.String("model", config.EnvOrDefault("FISHAI_ONNX_MODEL", ""), "Optional ONNX value model; the weighted evaluator is the fallback")
	onnxSessions := flag.Int("onnx-sessions", 1, "Number of ONNX Runtime sessions to run in parallel (each has its own batching loop)")
	onnxBatchSize := flag.Int("onnx-batch-size", inference.DefaultBatchSize, "ONNX inference batch size")
	onnxBatchTimeout := flag.Duration("onnx-batch-timeout", inference.DefaultBatchTimeout, "Max time to wait for filling an ONNX batch")
	useTUI := flag.Bool("tui", config.EnvBoolOrDefault("FISHAI_TUI", false), "Show a terminal dashboard instead of status lines")
	trace := flag.Bool("trace", false, "Print every board of worker 0")
	logFormat := flag.String("log-format", config.EnvOrDefault("FISHAI_LOG_FORMAT", "pretty"), "Log format: pretty, compact or text")
	logLevel := flag.String("log-level", config.EnvOrDefault("FISHAI_LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	logOut := os.Stderr
	if *useTUI {
		// Keep the dashboard readable.
		f, err := os.OpenFile("selfplay.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
		logOut = f
	}
	logger, err := logging.New(logOut, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	slog.SetDefault(logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	weights := eval.DefaultWeights
	if *weightsPath != "" {
		weights, err = eval.LoadWeights(*weightsPath)
		if err != nil {
			log.Fatalf("weights: %v", err)
		}
	}
	weighted, err := eval.NewWeighted(weights)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}

	var evaluator eval.Evaluator = weighted
	var statsProvider interface{ Stats() inference.RuntimeStats }
	if *modelPath != "" {
		onnxCfg := inference.OnnxClientConfig{BatchSize: *onnxBatchSize, BatchTimeout: *onnxBatchTimeout, Logger: logger}
		pool, err := inference.NewOnnxClientPoolWithConfig(*modelPath, *onnxSessions, onnxCfg)
		if err != nil {
			log.Fatalf("Failed to create ONNX client pool: %v", err)
		}
		defer pool.Close()
		evaluator = inference.NewValueEvaluator(pool, weighted, logger)
		statsProvider = pool
		log.Printf("ONNX model %s loaded with %d session(s)", *modelPath, *onnxSessions)
	}
	counting := &countingEvaluator{Evaluator: evaluator}
	engine := search.NewEngine(counting, search.Config{MaxDepth: *maxDepth, Budget: *budget}, logger)

	log.Printf("Starting self-play with %d workers (budget=%s, max depth=%d)", *workers, *budget, *maxDepth)

	updates := make(chan GameUpdate, *workers)
	writeReqs := make(chan gameWriteRequest, (*workers)*4)

	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(*outDir, *gamesPerFlush, writeReqs, logger)
		close(writerDone)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *workers; i++ {
		workerID := i
		g.Go(func() error {
			return runWorker(gctx, workerID, engine, *randomOpening, *trace && workerID == 0, *maxGames, cancel, writeReqs, updates, logger)
		})
	}

	workersDone := make(chan error, 1)
	go func() {
		workersDone <- g.Wait()
	}()

	shutdown := func() {
		log.Printf("Shutdown requested; waiting for workers to finish...")
		if err := <-workersDone; err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("worker error: %v", err)
		}
		close(writeReqs)
		<-writerDone
		log.Printf("Shutdown complete: final parquet flush done (games=%d)", totalGames.Load())
	}

	if *useTUI {
		p := tea.NewProgram(initialModel(updates, counting, statsProvider), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Printf("tui: %v", err)
		}
		cancel()
		shutdown()
		return
	}

	startTime := time.Now()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdown()
			return
		case update := <-updates:
			log.Printf("Worker %d: Winner %s, Fish %d:%d, Turns %d, Rows %d", update.WorkerID, update.Result.Winner, update.Result.Fish[0], update.Result.Fish[1], update.Result.Turns, update.Rows)
		case <-ticker.C:
			secs := time.Since(startTime).Seconds()
			movesPerSec := float64(totalMoves.Load()) / secs
			evalsPerSec := float64(counting.calls.Load()) / secs
			if statsProvider != nil {
				st := statsProvider.Stats()
				log.Printf("Stats: Moves/s: %.2f, Evals/s: %.0f | batch avg=%.1f last=%d q=%d run avg=%.2fms", movesPerSec, evalsPerSec, st.AvgBatchSize, st.LastBatchSize, st.QueueLen, st.AvgRunMs)
			} else {
				log.Printf("Stats: Moves/s: %.2f, Evals/s: %.0f", movesPerSec, evalsPerSec)
			}
		}
	}
}

func runWorker(ctx context.Context, workerID int, engine *search.Engine, randomOpening int, trace bool, maxGames int64, cancel context.CancelFunc, writeReqs chan<- gameWriteRequest, updates chan<- GameUpdate, logger *slog.Logger) error {
	logger = logger.With("worker", workerID)
	logger.Info("worker started")
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		seed := time.Now().UnixNano() + int64(workerID)*1000003
		out, err := selfplay.PlayGame(ctx, selfplay.GameOptions{
			GameID:        fmt.Sprintf("selfplay_%d_%d_%d", seed, workerID, n),
			Seed:          seed,
			Engines:       [game.Teams]*search.Engine{engine, engine},
			RandomOpening: randomOpening,
			Verbose:       trace,
			OnStep:        func() { totalMoves.Add(1) },
			Logger:        logger,
		})
		if errors.Is(err, selfplay.ErrAborted) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("worker %d: %w", workerID, err)
		}

		total := totalGames.Add(1)
		if maxGames > 0 && total >= maxGames {
			cancel()
		}
		writeReqs <- gameWriteRequest{rows: out.Rows}

		// Avoid blocking shutdown if the UI loop stops consuming.
		select {
		case updates <- GameUpdate{WorkerID: workerID, Result: out.Result, Rows: len(out.Rows)}:
		default:
		}
	}
}
