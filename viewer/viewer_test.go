package viewer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gameRows(t *testing.T, gameID, winner string) []store.ArchiveTurnRow {
	t.Helper()
	s := game.NewRandomState(nil, game.DefaultFloeSettings, game.One, 7)
	search, err := store.EncodeSearchJSON([]store.DepthSummary{
		{Depth: 1, Move: "-> (2, 0)", Score: 0.5, Nodes: 40, Complete: true},
		{Depth: 2, Move: "-> (2, 0)", Score: 1.25, Nodes: 900, Complete: true},
	})
	if err != nil {
		t.Fatalf("EncodeSearchJSON: %v", err)
	}
	first := store.ArchiveTurnRow{
		GameID:     gameID,
		Turn:       0,
		StartTeam:  game.One.String(),
		Team:       game.One.String(),
		Board:      s.Board.String(),
		Score:      1.25,
		Depth:      2,
		Nodes:      940,
		Reason:     "converged",
		Features:   []float32{1, 2},
		Value:      1,
		Winner:     winner,
		Source:     "selfplay",
		SearchJSON: search,
	}
	first.SetMove(game.Placing(game.Doubled{X: 2, Y: 0}))
	second := first
	second.Turn = 1
	second.Team = game.Two.String()
	second.Depth = 4
	second.Value = -1
	second.SearchJSON = nil
	second.SetMove(game.Placing(game.Doubled{X: 5, Y: 1}))
	return []store.ArchiveTurnRow{second, first}
}

func writeArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := store.WriteArchiveBatchParquetAtomic(dir, gameRows(t, "selfplay_100_0_0", "ONE")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.WriteArchiveBatchParquetAtomic(dir, gameRows(t, "selfplay_200_0_1", "TWO")); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Partial batches under tmp/ must be ignored.
	if err := os.WriteFile(filepath.Join(dir, "tmp", "broken.parquet"), []byte("nope"), 0o644); err != nil {
		t.Fatalf("write tmp file: %v", err)
	}
	return dir
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestFileSource_GamesAndStats(t *testing.T) {
	src := NewFileSource([]string{writeArchive(t)})
	games, err := src.Games(context.Background())
	if err != nil {
		t.Fatalf("Games: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("games=%+v", games)
	}
	g := games[0]
	if g.GameID != "selfplay_100_0_0" || g.TurnCount != 2 || g.MaxTurn != 1 || g.Winner != "ONE" {
		t.Fatalf("summary=%+v", g)
	}
	if g.StartedNs == nil || *g.StartedNs != 100 {
		t.Fatalf("started_ns=%v", g.StartedNs)
	}

	stats, err := src.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 || stats[0].Winner != "ONE" || stats[0].Games != 1 || stats[0].Rows != 2 || stats[0].AvgDepth != 3 {
		t.Fatalf("stats=%+v", stats)
	}

	if _, err := src.Turns(context.Background(), "missing"); err != ErrGameNotFound {
		t.Fatalf("missing game err=%v", err)
	}
}

func TestPaginateGames(t *testing.T) {
	n := func(v int64) *int64 { return &v }
	games := []GameSummary{
		{GameID: "a", StartedNs: n(3), TurnCount: 10},
		{GameID: "b", TurnCount: 30},
		{GameID: "c", StartedNs: n(5), TurnCount: 20},
	}
	got := paginateGames(games, 10, 0, "", "")
	if got[0].GameID != "c" || got[1].GameID != "a" {
		t.Fatalf("default order=%+v", got)
	}
	got = paginateGames(games, 2, 1, "turns", "asc")
	if len(got) != 2 || got[0].GameID != "c" || got[1].GameID != "b" {
		t.Fatalf("turns asc page=%+v", got)
	}
	if got := paginateGames(games, 5, 9, "id", "asc"); len(got) != 0 {
		t.Fatalf("offset past end=%+v", got)
	}
}

func TestAPI_GamesAndTurns(t *testing.T) {
	ts := httptest.NewServer(NewServer(NewFileSource([]string{writeArchive(t)}), quietLogger()).Routes())
	defer ts.Close()

	var games GamesResponse
	resp := get(t, ts.URL+"/api/games?sort=id&dir=asc&limit=1")
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if games.Total != 2 || len(games.Games) != 1 || games.Games[0].GameID != "selfplay_100_0_0" {
		t.Fatalf("games=%+v", games)
	}

	var turns TurnsResponse
	resp = get(t, ts.URL+"/api/games/selfplay_100_0_0/turns")
	if err := json.NewDecoder(resp.Body).Decode(&turns); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(turns.Turns) != 2 || turns.Turns[0].Turn != 0 || turns.Turns[1].Turn != 1 {
		t.Fatalf("turns=%+v", turns.Turns)
	}
	first := turns.Turns[0]
	if first.MoveText != "-> (2, 0)" || len(first.Board) != game.BoardSize || len(first.Search) != 2 {
		t.Fatalf("first turn=%+v", first)
	}

	if resp := get(t, ts.URL+"/api/games/nope/turns"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown game status=%d", resp.StatusCode)
	}
}

func TestReplayPage(t *testing.T) {
	ts := httptest.NewServer(NewServer(NewFileSource([]string{writeArchive(t)}), quietLogger()).Routes())
	defer ts.Close()

	resp := get(t, ts.URL+"/games/selfplay_200_0_1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if got := doc.Find("#winner").Text(); got != "TWO" {
		t.Fatalf("winner=%q", got)
	}
	sections := doc.Find("section.turn")
	if sections.Length() != 2 {
		t.Fatalf("turn sections=%d", sections.Length())
	}
	first := sections.First()
	if got := first.Find("table.board tr").Length(); got != game.BoardSize {
		t.Fatalf("board rows=%d", got)
	}
	if got := first.Find("table.board td").Length(); got != game.BoardFields {
		t.Fatalf("board cells=%d", got)
	}
	if got := first.Find("table.board tr.odd").Length(); got != game.BoardSize/2 {
		t.Fatalf("offset rows=%d", got)
	}
	if got := strings.TrimSpace(first.Find("span.move").Text()); got != "-> (2, 0)" {
		t.Fatalf("move=%q", got)
	}
	if got := first.Find("table.search tr").Length(); got != 3 {
		t.Fatalf("search rows=%d", got)
	}
	if sections.Last().Find("table.search").Length() != 0 {
		t.Fatalf("turn without search summary rendered a search table")
	}
}

func TestIndexPage(t *testing.T) {
	ts := httptest.NewServer(NewServer(NewFileSource([]string{writeArchive(t)}), quietLogger()).Routes())
	defer ts.Close()

	doc, err := goquery.NewDocumentFromReader(get(t, ts.URL+"/?sort=id&dir=asc").Body)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	var links []string
	doc.Find("#games tr.game a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, href)
	})
	if len(links) != 2 || links[0] != "/games/selfplay_100_0_0" {
		t.Fatalf("links=%v", links)
	}
	if got := doc.Find("#stats tr").Length(); got != 3 {
		t.Fatalf("stats rows=%d", got)
	}
}

// TestDBCache_MatchesFileSource needs the DuckDB native library; it skips
// when the driver cannot open a database.
func TestDBCache_MatchesFileSource(t *testing.T) {
	dir := writeArchive(t)
	cache := NewDBCache([]string{dir}, time.Minute, quietLogger())
	defer cache.Close()
	if _, err := cache.Get(); err != nil {
		t.Skipf("duckdb unavailable: %v", err)
	}

	games, err := cache.Games(context.Background())
	if err != nil {
		t.Fatalf("Games: %v", err)
	}
	if len(games) != 2 || games[1].GameID != "selfplay_200_0_1" || games[1].TurnCount != 2 || games[1].Winner != "TWO" {
		t.Fatalf("games=%+v", games)
	}

	rows, err := cache.Turns(context.Background(), "selfplay_100_0_0")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(rows) != 2 || rows[0].Turn != 0 || !rows[0].Move().IsPlacement() || len(rows[0].SearchJSON) == 0 {
		t.Fatalf("rows=%+v", rows)
	}
	if len(rows[0].Features) != 2 || rows[0].Features[1] != 2 {
		t.Fatalf("features=%v", rows[0].Features)
	}

	stats, err := cache.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 || stats[1].Winner != "TWO" || stats[1].Rows != 2 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestDBCache_Empty(t *testing.T) {
	cache := NewDBCache([]string{filepath.Join(t.TempDir(), "missing")}, time.Minute, quietLogger())
	defer cache.Close()
	if _, err := cache.Get(); err != nil {
		t.Skipf("duckdb unavailable: %v", err)
	}
	games, err := cache.Games(context.Background())
	if err != nil || len(games) != 0 {
		t.Fatalf("games=%v err=%v", games, err)
	}
}

func TestAPI_TurnsClampInfiniteScores(t *testing.T) {
	dir := t.TempDir()
	rows := gameRows(t, "proven", "ONE")
	rows[0].Score = float32(math.Inf(1))
	rows[1].Score = float32(math.Inf(-1))
	if _, err := store.WriteArchiveBatchParquetAtomic(dir, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	ts := httptest.NewServer(NewServer(NewFileSource([]string{dir}), quietLogger()).Routes())
	defer ts.Close()

	resp := get(t, ts.URL+"/api/games/proven/turns")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var turns TurnsResponse
	if err := json.NewDecoder(resp.Body).Decode(&turns); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(turns.Turns) != 2 || turns.Turns[0].Score != -search.ProvenScore || turns.Turns[1].Score != search.ProvenScore {
		t.Fatalf("turns=%+v", turns.Turns)
	}
}

func TestWriteJSON_UnencodableIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, map[string]float64{"score": math.Inf(1)})
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "encode") {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}
