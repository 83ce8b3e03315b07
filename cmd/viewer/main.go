// Package main serves the archive browser.
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
	"strings"
	"syscall"
	"time"

	"github.com/JakobRinke/FishAI/config"
	"github.com/JakobRinke/FishAI/logging"
	"github.com/JakobRinke/FishAI/viewer"
)

func defaultDataDirs() string {
	dirs := []string{filepath.Join("data", "generated"), filepath.Join("data", "played")}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if _, err := os.Stat(d); err == nil {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, dirs[0])
	}
	return strings.Join(out, ",")
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", config.EnvOrDefault("FISHAI_VIEWER_LISTEN", "127.0.0.1:8090"), "HTTP listen address")
	dataDirs := fs.String("data-dirs", config.EnvOrDefault("FISHAI_DATA_DIRS", defaultDataDirs()), "Comma separated archive roots")
	engine := fs.String("engine", config.EnvOrDefault("FISHAI_VIEWER_ENGINE", "duckdb"), "Query engine: duckdb or parquet")
	refresh := fs.Duration("refresh", config.EnvDurationOrDefault("FISHAI_VIEWER_REFRESH", 30*time.Second), "How long the duckdb view is reused before new files are picked up")
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

	roots := viewer.ParseDataRoots(*dataDirs)
	var source viewer.Source
	switch *engine {
	case "duckdb":
		cache := viewer.NewDBCache(roots, *refresh, logger)
		if _, err := cache.Get(); err != nil {
			log.Fatalf("duckdb: %v", err)
		}
		source = cache
	case "parquet":
		source = viewer.NewFileSource(roots)
	default:
		log.Fatalf("unknown engine %q", *engine)
	}
	defer source.Close()

	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           viewer.NewServer(source, logger).Routes(),
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

	logger.Info("viewer listening", "addr", "http://"+*listen, "roots", roots, "engine", *engine)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
