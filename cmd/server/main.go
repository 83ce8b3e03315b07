// Package main serves the search engine to game clients over HTTP and
// WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/JakobRinke/FishAI/config"
	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/executor/inference"
	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/logging"
	"github.com/JakobRinke/FishAI/server"
	"github.com/JakobRinke/FishAI/store"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", config.EnvOrDefault("FISHAI_LISTEN", ":8080"), "HTTP listen address")
	budget := fs.Duration("budget", config.EnvDurationOrDefault("FISHAI_BUDGET", search.DefaultConfig.Budget), "Default search budget per move")
	maxDepth := fs.Int("max-depth", config.EnvIntOrDefault("FISHAI_MAX_DEPTH", search.DefaultConfig.MaxDepth), "Maximum search depth")
	weightsPath := fs.String("weights", config.EnvOrDefault("FISHAI_WEIGHTS", ""), "JSON file of evaluator feature weights")
	modelPath := fs.String("model", config.EnvOrDefault("FISHAI_ONNX_MODEL", ""), "Optional ONNX value model")
	sessions := fs.Int("onnx-sessions", 1, "Number of ONNX sessions")
	disableCUDA := fs.Bool("disable-cuda", config.EnvBoolOrDefault("FISHAI_ORT_DISABLE_CUDA", false), "Disable CUDA execution provider")
	archiveDir := fs.String("archive-dir", config.EnvOrDefault("FISHAI_ARCHIVE_DIR", filepath.Join("data", "played")), "Directory for archived games (empty disables)")
	logRequests := fs.Bool("log-requests", false, "Log every HTTP request")
	logFormat := fs.String("log-format", config.EnvOrDefault("FISHAI_LOG_FORMAT", "pretty"), "Log format: pretty, compact or text")
	logLevel := fs.String("log-level", config.EnvOrDefault("FISHAI_LOG_LEVEL", "info"), "Log level")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("flag parse: %v", err)
	}

	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	slog.SetDefault(logger)

	weights := eval.DefaultWeights
	if *weightsPath != "" {
		if weights, err = eval.LoadWeights(*weightsPath); err != nil {
			log.Fatalf("weights: %v", err)
		}
	}
	weighted, err := eval.NewWeighted(weights)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}
	var evaluator eval.Evaluator = weighted
	if *modelPath != "" {
		log.Printf("Loading model from: %s", *modelPath)
		pool, err := inference.NewOnnxClientPoolWithConfig(*modelPath, *sessions, inference.OnnxClientConfig{DisableCUDA: *disableCUDA, Logger: logger})
		if err != nil {
			log.Fatalf("Failed to create inference pool: %v", err)
		}
		defer pool.Close()
		evaluator = inference.NewValueEvaluator(pool, weighted, logger)
	}

	var written *store.WrittenLog
	if *archiveDir != "" {
		written, err = store.OpenWrittenLog(filepath.Join(*archiveDir, "written_games.log"))
		if err != nil {
			log.Fatalf("written log: %v", err)
		}
		defer written.Close()
		log.Printf("Archiving games to %s (%d already written)", *archiveDir, written.Count())
	}

	engine := search.NewEngine(evaluator, search.Config{MaxDepth: *maxDepth, Budget: *budget}, logger)
	srv, err := server.New(server.Config{
		Engine:      engine,
		ArchiveDir:  *archiveDir,
		Written:     written,
		LogRequests: *logRequests,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("FishAI server listening on http://%s", *listen)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	if n := srv.Sessions().Len(); n > 0 {
		log.Printf("Shutting down with %d unfinished game(s); their rows are dropped", n)
	}
}
