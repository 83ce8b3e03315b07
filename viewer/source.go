// Package viewer browses archived games: a game list, a per-game replay and
// aggregate stats, served as JSON and as plain HTML pages.
package viewer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/JakobRinke/FishAI/store"
)

var ErrGameNotFound = errors.New("game not found")

// Source is where the viewer reads archived games from.
type Source interface {
	Games(ctx context.Context) ([]GameSummary, error)
	Turns(ctx context.Context, gameID string) ([]store.ArchiveTurnRow, error)
	Stats(ctx context.Context) ([]StatsRow, error)
	Close() error
}

// FindParquetFiles walks root for archive files, skipping tmp directories
// that hold batches still being written.
func FindParquetFiles(root string) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(name), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		if os.IsNotExist(walkErr) {
			return nil, nil
		}
		return nil, walkErr
	}
	return files, nil
}

func FindParquetFilesMulti(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, r := range roots {
		files, err := FindParquetFiles(r)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

func ParseDataRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

var selfplayStart = regexp.MustCompile(`^selfplay_([0-9]+)`)

func startedNs(gameID string) *int64 {
	m := selfplayStart.FindStringSubmatch(gameID)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// FileSource reads the archive files with parquet-go on every call. It needs
// no native libraries and suits small archives and tests.
type FileSource struct {
	roots []string
}

func NewFileSource(roots []string) *FileSource {
	return &FileSource{roots: roots}
}

func (s *FileSource) each(ctx context.Context, fn func(file string, rows []store.ArchiveTurnRow)) error {
	files, err := FindParquetFilesMulti(s.roots)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := store.ReadArchiveParquet(f)
		if err != nil {
			return err
		}
		fn(f, rows)
	}
	return nil
}

func (s *FileSource) Games(ctx context.Context) ([]GameSummary, error) {
	byID := map[string]*GameSummary{}
	err := s.each(ctx, func(file string, rows []store.ArchiveTurnRow) {
		for _, r := range rows {
			g, ok := byID[r.GameID]
			if !ok {
				g = &GameSummary{
					GameID:     r.GameID,
					StartedNs:  startedNs(r.GameID),
					Winner:     r.Winner,
					Source:     r.Source,
					SourceFile: filepath.ToSlash(file),
				}
				byID[r.GameID] = g
			}
			g.TurnCount++
			if r.Turn > g.MaxTurn {
				g.MaxTurn = r.Turn
			}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]GameSummary, 0, len(byID))
	for _, g := range byID {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

// Turns returns the rows of gameID ordered by turn.
func (s *FileSource) Turns(ctx context.Context, gameID string) ([]store.ArchiveTurnRow, error) {
	var out []store.ArchiveTurnRow
	err := s.each(ctx, func(_ string, rows []store.ArchiveTurnRow) {
		for _, r := range rows {
			if r.GameID == gameID {
				out = append(out, r)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrGameNotFound
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Turn < out[j].Turn })
	return out, nil
}

func (s *FileSource) Stats(ctx context.Context) ([]StatsRow, error) {
	type key struct{ source, winner string }
	type acc struct {
		games    map[string]bool
		rows     int64
		depthSum int64
	}
	groups := map[key]*acc{}
	err := s.each(ctx, func(_ string, rows []store.ArchiveTurnRow) {
		for _, r := range rows {
			k := key{r.Source, r.Winner}
			a := groups[k]
			if a == nil {
				a = &acc{games: map[string]bool{}}
				groups[k] = a
			}
			a.games[r.GameID] = true
			a.rows++
			a.depthSum += int64(r.Depth)
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]StatsRow, 0, len(groups))
	for k, a := range groups {
		out = append(out, StatsRow{
			Source:   k.source,
			Winner:   k.winner,
			Games:    int64(len(a.games)),
			Rows:     a.rows,
			AvgDepth: float64(a.depthSum) / float64(a.rows),
		})
	}
	sortStats(out)
	return out, nil
}

func (s *FileSource) Close() error { return nil }

func sortStats(rows []StatsRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Source != rows[j].Source {
			return rows[i].Source < rows[j].Source
		}
		return rows[i].Winner < rows[j].Winner
	})
}
