package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/JakobRinke/FishAI/game"
)

const archiveSchema = "floes_archive_turn_v1"

// ArchiveTurnRow is a single (game, turn) snapshot taken before the move is
// played, together with the move chosen and how the engine chose it.
//
// Value is the final outcome in [-1..1] from Team's perspective. It is filled
// in once the game is over; rows of unfinished games are never written.
// Features are the evaluator features for Team in the order the archive's
// FeatureNames metadata lists them.
type ArchiveTurnRow struct {
	GameID    string `parquet:"game_id,dict"`
	Turn      int32  `parquet:"turn"`
	StartTeam string `parquet:"start_team,dict"`
	Team      string `parquet:"team,dict"`

	// Board is the eight-line text form, top row first.
	Board   string `parquet:"board"`
	FishOne int32  `parquet:"fish_one"`
	FishTwo int32  `parquet:"fish_two"`

	Placement bool  `parquet:"placement"`
	FromX     int32 `parquet:"from_x"`
	FromY     int32 `parquet:"from_y"`
	ToX       int32 `parquet:"to_x"`
	ToY       int32 `parquet:"to_y"`

	Score     float32 `parquet:"score"`
	Depth     int32   `parquet:"depth"`
	Nodes     int64   `parquet:"nodes"`
	ElapsedMs float32 `parquet:"elapsed_ms"`
	Reason    string  `parquet:"reason,dict"`

	Features []float32 `parquet:"features"`
	Value    float32   `parquet:"value"`
	Winner   string    `parquet:"winner,dict"`

	Source string `parquet:"source,dict"`

	// SearchJSON stores the per-depth search summary as a JSON array of
	// DepthSummary.
	SearchJSON []byte `parquet:"search_json,optional,zstd"`
}

// DepthSummary is one completed depth of iterative deepening.
type DepthSummary struct {
	Depth    int     `json:"depth"`
	Move     string  `json:"move"`
	Score    float64 `json:"score"`
	Nodes    int64   `json:"nodes"`
	Complete bool    `json:"complete"`
}

// Move decodes the row's move.
func (r *ArchiveTurnRow) Move() game.Move {
	to := game.Doubled{X: int(r.ToX), Y: int(r.ToY)}
	if r.Placement {
		return game.Placing(to)
	}
	return game.Between(game.Doubled{X: int(r.FromX), Y: int(r.FromY)}, to)
}

// SetMove encodes m into the row.
func (r *ArchiveTurnRow) SetMove(m game.Move) {
	r.Placement = m.IsPlacement()
	r.ToX, r.ToY = int32(m.To.X), int32(m.To.Y)
	r.FromX, r.FromY = -1, -1
	if m.From != nil {
		r.FromX, r.FromY = int32(m.From.X), int32(m.From.Y)
	}
}

// State rebuilds the position the row was recorded from.
func (r *ArchiveTurnRow) State() (game.State, error) {
	b, err := game.ParseBoard(r.Board)
	if err != nil {
		return game.State{}, fmt.Errorf("row %s/%d: %w", r.GameID, r.Turn, err)
	}
	start, err := game.ParseTeam(r.StartTeam)
	if err != nil {
		return game.State{}, fmt.Errorf("row %s/%d: %w", r.GameID, r.Turn, err)
	}
	return game.State{
		Board:     b,
		Turn:      int(r.Turn),
		Fish:      [game.Teams]int{int(r.FishOne), int(r.FishTwo)},
		StartTeam: start,
	}, nil
}

func EncodeSearchJSON(depths []DepthSummary) ([]byte, error) {
	if len(depths) == 0 {
		return nil, nil
	}
	return json.Marshal(depths)
}

func writeOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", archiveSchema),
	}
}

func WriteArchiveParquet(outPath string, rows []ArchiveTurnRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Write to a temp file and rename atomically.
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writeOptions()...); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteArchiveBatchParquetAtomic writes a Parquet file into outDir/tmp and then
// atomically moves it into outDir, so readers never observe partial files.
func WriteArchiveBatchParquetAtomic(outDir string, rows []ArchiveTurnRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writeOptions()...); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadArchiveParquet loads every row of an archive file.
func ReadArchiveParquet(path string) ([]ArchiveTurnRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[ArchiveTurnRow](pf)
	defer reader.Close()

	// Each row gets its own slot so decoded slices are never reused.
	out := make([]ArchiveTurnRow, reader.NumRows())
	read := 0
	for read < len(out) {
		n, err := reader.Read(out[read:])
		read += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	out = out[:read]
	return out, nil
}

// ListArchiveFiles returns the finished parquet files directly under dir.
func ListArchiveFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
