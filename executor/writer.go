package main

import (
	"log/slog"

	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/store"
)

// parquetWriterLoop streams finished games into batch files of gamesPerFlush
// games each and flushes the remainder when in closes.
func parquetWriterLoop(outDir string, gamesPerFlush int, in <-chan gameWriteRequest, logger *slog.Logger) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}

	var w *store.BatchWriter
	finalize := func(final bool) {
		if w == nil {
			return
		}
		outPath, rows, games, err := w.Finalize()
		w = nil
		if err != nil {
			logger.Error("parquet flush failed", "games", games, "rows", rows, "final", final, "err", err)
			return
		}
		logger.Info("parquet flush ok", "path", outPath, "games", games, "rows", rows, "final", final)
	}

	for req := range in {
		if len(req.rows) == 0 {
			continue
		}
		if w == nil {
			var err error
			w, err = store.NewBatchWriter(outDir, eval.FeatureNames)
			if err != nil {
				logger.Error("open batch writer", "err", err, "dropped_rows", len(req.rows))
				continue
			}
		}
		if err := w.WriteGame(req.rows); err != nil {
			logger.Error("write game", "game_id", req.rows[0].GameID, "err", err)
			continue
		}
		if w.BufferedGames() >= gamesPerFlush {
			finalize(false)
		}
	}
	finalize(true)
}
