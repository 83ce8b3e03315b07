package viewer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/JakobRinke/FishAI/store"
)

// DBCache maintains a DuckDB view over the archive files and rebuilds it
// once refreshRate has passed so new batches show up.
type DBCache struct {
	roots       []string
	refreshRate time.Duration
	logger      *slog.Logger

	mu          sync.RWMutex
	db          *sql.DB
	lastRefresh time.Time

	// Games index, rebuilt only when the view is.
	gamesIndex []GameSummary
}

func NewDBCache(roots []string, refreshRate time.Duration, logger *slog.Logger) *DBCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBCache{
		roots:       roots,
		refreshRate: refreshRate,
		logger:      logger,
	}
}

// Get returns the cached DB connection, refreshing if needed.
func (c *DBCache) Get() (*sql.DB, error) {
	c.mu.RLock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		db := c.db
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		return c.db, nil
	}
	return c.refreshLocked()
}

// Refresh forces the view to be rebuilt.
func (c *DBCache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked()
	return err
}

func (c *DBCache) refreshLocked() (*sql.DB, error) {
	start := time.Now()
	files, err := FindParquetFilesMulti(c.roots)
	if err != nil {
		return nil, err
	}
	newDB, err := openDuckDB(files)
	if err != nil {
		return nil, err
	}
	if c.db != nil {
		_ = c.db.Close()
	}
	c.db = newDB
	c.lastRefresh = time.Now()
	c.gamesIndex = nil

	c.logger.Info("duckdb view refreshed", "files", len(files), "elapsed", time.Since(start))
	return c.db, nil
}

func (c *DBCache) Games(ctx context.Context) ([]GameSummary, error) {
	db, err := c.Get()
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	if c.gamesIndex != nil && c.db == db {
		idx := c.gamesIndex
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	start := time.Now()
	games, err := queryAllGames(ctx, db, c.roots)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.db == db {
		c.gamesIndex = games
	}
	c.mu.Unlock()
	c.logger.Debug("games index rebuilt", "games", len(games), "elapsed", time.Since(start))
	return games, nil
}

func (c *DBCache) Turns(ctx context.Context, gameID string) ([]store.ArchiveTurnRow, error) {
	db, err := c.Get()
	if err != nil {
		return nil, err
	}
	rows, err := queryTurns(ctx, db, gameID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrGameNotFound
	}
	return rows, nil
}

func (c *DBCache) Stats(ctx context.Context) ([]StatsRow, error) {
	db, err := c.Get()
	if err != nil {
		return nil, err
	}
	return queryStats(ctx, db)
}

func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

const emptyTurnsView = `CREATE OR REPLACE VIEW turns AS
	SELECT * FROM (
		SELECT
			NULL::VARCHAR AS game_id,
			NULL::INTEGER AS turn,
			NULL::VARCHAR AS start_team,
			NULL::VARCHAR AS team,
			NULL::VARCHAR AS board,
			NULL::INTEGER AS fish_one,
			NULL::INTEGER AS fish_two,
			NULL::BOOLEAN AS placement,
			NULL::INTEGER AS from_x,
			NULL::INTEGER AS from_y,
			NULL::INTEGER AS to_x,
			NULL::INTEGER AS to_y,
			NULL::REAL AS score,
			NULL::INTEGER AS depth,
			NULL::BIGINT AS nodes,
			NULL::REAL AS elapsed_ms,
			NULL::VARCHAR AS reason,
			NULL::REAL[] AS features,
			NULL::REAL AS value,
			NULL::VARCHAR AS winner,
			NULL::VARCHAR AS source,
			NULL::BLOB AS search_json,
			NULL::VARCHAR AS filename
	) WHERE 1=0`

func openDuckDB(parquetFiles []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// Ignore pragma errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")
	_, _ = db.Exec("PRAGMA enable_object_cache=false")

	if len(parquetFiles) == 0 {
		if _, err := db.Exec(emptyTurnsView); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	arr := make([]string, 0, len(parquetFiles))
	for _, p := range parquetFiles {
		arr = append(arr, "'"+escapeSQLString(p)+"'")
	}
	sqlText := "CREATE OR REPLACE VIEW turns AS SELECT * FROM read_parquet([" + strings.Join(arr, ",") + "], filename=true)"
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func makeRelativeToRoots(filename string, roots []string) string {
	fn := strings.TrimSpace(filename)
	if fn == "" {
		return ""
	}
	best := fn
	for _, r := range roots {
		root := strings.TrimSpace(r)
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, fn)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		cand := filepath.ToSlash(filepath.Join(root, rel))
		if len(cand) < len(best) {
			best = cand
		}
	}
	return best
}

func queryAllGames(ctx context.Context, db *sql.DB, roots []string) ([]GameSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			game_id,
			COUNT(*)::INTEGER AS turn_count,
			MAX(turn)::INTEGER AS max_turn,
			MIN(winner)::VARCHAR AS winner,
			MIN(source)::VARCHAR AS source,
			MIN(filename)::VARCHAR AS file
		FROM turns
		GROUP BY game_id
		ORDER BY game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]GameSummary, 0, 256)
	for rows.Next() {
		var g GameSummary
		var file string
		if err := rows.Scan(&g.GameID, &g.TurnCount, &g.MaxTurn, &g.Winner, &g.Source, &file); err != nil {
			return nil, err
		}
		g.StartedNs = startedNs(g.GameID)
		g.SourceFile = makeRelativeToRoots(file, roots)
		out = append(out, g)
	}
	return out, rows.Err()
}

func queryStats(ctx context.Context, db *sql.DB) ([]StatsRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			source,
			winner,
			COUNT(DISTINCT game_id) AS games,
			COUNT(*) AS rows,
			AVG(depth)::DOUBLE AS avg_depth
		FROM turns
		GROUP BY source, winner
		ORDER BY source, winner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var s StatsRow
		if err := rows.Scan(&s.Source, &s.Winner, &s.Games, &s.Rows, &s.AvgDepth); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func queryTurns(ctx context.Context, db *sql.DB, gameID string) ([]store.ArchiveTurnRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			game_id, turn, start_team, team, board, fish_one, fish_two,
			placement, from_x, from_y, to_x, to_y,
			score, depth, nodes, elapsed_ms, reason,
			features, value, winner, source, search_json
		FROM turns
		WHERE game_id = ?
		ORDER BY turn ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ArchiveTurnRow
	for rows.Next() {
		var r store.ArchiveTurnRow
		var features any
		if err := rows.Scan(
			&r.GameID, &r.Turn, &r.StartTeam, &r.Team, &r.Board, &r.FishOne, &r.FishTwo,
			&r.Placement, &r.FromX, &r.FromY, &r.ToX, &r.ToY,
			&r.Score, &r.Depth, &r.Nodes, &r.ElapsedMs, &r.Reason,
			&features, &r.Value, &r.Winner, &r.Source, &r.SearchJSON,
		); err != nil {
			return nil, fmt.Errorf("scan turn of %s: %w", gameID, err)
		}
		r.Features = asFloat32Slice(features)
		out = append(out, r)
	}
	return out, rows.Err()
}

func asFloat32Slice(v any) []float32 {
	switch vv := v.(type) {
	case []float32:
		return vv
	case []float64:
		out := make([]float32, 0, len(vv))
		for _, x := range vv {
			out = append(out, float32(x))
		}
		return out
	case []any:
		out := make([]float32, 0, len(vv))
		for _, x := range vv {
			switch f := x.(type) {
			case float32:
				out = append(out, f)
			case float64:
				out = append(out, float32(f))
			default:
				out = append(out, 0)
			}
		}
		return out
	default:
		return nil
	}
}
