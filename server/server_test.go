package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/store"
)

const fixtureBoard = `
00000000
0000000R
00000B00
0B000000
10R0R102
00010000
001000B0
1R0100B0
`

const finishedBoard = `
RRRRBBBB
00000000
00000000
00000000
00000000
00000000
00000000
00000000
`

// provenBoard leaves only One able to move, collecting the last two fish.
const provenBoard = `
R1100000
00000000
00000000
00000000
RRR0BBBB
00000000
00000000
00000000
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshot(t *testing.T, board string, turn int, fish [2]int) *game.Snapshot {
	t.Helper()
	b, err := game.ParseBoard(board)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	s := game.State{Board: b, Turn: turn, Fish: fish, StartTeam: game.One}
	snap := s.Snapshot()
	return &snap
}

func newTestServer(t *testing.T, archiveDir string, written *store.WrittenLog) (*Server, *httptest.Server) {
	t.Helper()
	ev, err := eval.NewWeighted(eval.DefaultWeights)
	if err != nil {
		t.Fatalf("NewWeighted: %v", err)
	}
	engine := search.NewEngine(ev, search.Config{MaxDepth: 3, Budget: time.Second}, quietLogger())
	srv, err := New(Config{Engine: engine, ArchiveDir: archiveDir, Written: written, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func post(t *testing.T, url string, body any, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func fixtureMoves() map[string]bool {
	return map[string]bool{
		"(8, 4) -> (10, 4)": true,
		"(8, 4) -> (7, 5)":  true,
		"(3, 7) -> (4, 6)":  true,
		"(3, 7) -> (1, 7)":  true,
	}
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	var info InfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || info.APIVersion != "1" {
		t.Fatalf("status=%d info=%+v", resp.StatusCode, info)
	}
}

func TestMove_ReturnsLegalMove(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	var resp MoveResponse
	code := post(t, ts.URL+"/move", GameRequest{State: snapshot(t, fixtureBoard, 57, [2]int{20, 17})}, &resp)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if !fixtureMoves()[resp.Text] {
		t.Fatalf("move %q is not legal", resp.Text)
	}
	if m := game.MoveFromDTO(resp.Move); m.String() != resp.Text {
		t.Fatalf("dto %+v does not match %q", resp.Move, resp.Text)
	}
	if resp.Depth < 1 {
		t.Fatalf("depth=%d", resp.Depth)
	}
}

func TestMove_BadRequests(t *testing.T) {
	_, ts := newTestServer(t, "", nil)

	var e ErrorResponse
	bad := snapshot(t, fixtureBoard, 57, [2]int{0, 0})
	bad.Board[0][0] = "X"
	if code := post(t, ts.URL+"/move", GameRequest{State: bad}, &e); code != http.StatusBadRequest || !strings.Contains(e.Error, "X") {
		t.Fatalf("bad token: status=%d err=%q", code, e.Error)
	}
	if code := post(t, ts.URL+"/move", GameRequest{}, &e); code != http.StatusBadRequest {
		t.Fatalf("missing state: status=%d", code)
	}
	if code := post(t, ts.URL+"/move", GameRequest{State: snapshot(t, finishedBoard, 60, [2]int{5, 3})}, &e); code != http.StatusBadRequest {
		t.Fatalf("finished game: status=%d", code)
	}

	resp, err := http.Post(ts.URL+"/move", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid json: status=%d", resp.StatusCode)
	}
}

func TestSession_ArchivesOnceAtEnd(t *testing.T) {
	dir := t.TempDir()
	written, err := store.OpenWrittenLog(filepath.Join(dir, "written.log"))
	if err != nil {
		t.Fatalf("OpenWrittenLog: %v", err)
	}
	defer written.Close()
	srv, ts := newTestServer(t, dir, written)

	if code := post(t, ts.URL+"/start", GameRequest{GameID: "g1"}, nil); code != http.StatusOK {
		t.Fatalf("start status=%d", code)
	}
	var mv MoveResponse
	if code := post(t, ts.URL+"/move", GameRequest{GameID: "g1", State: snapshot(t, fixtureBoard, 57, [2]int{20, 17})}, &mv); code != http.StatusOK {
		t.Fatalf("move status=%d", code)
	}
	if sess, ok := srv.Sessions().Get("g1"); !ok || sess.Len() != 1 {
		t.Fatalf("session not recorded")
	}

	var end EndResponse
	if code := post(t, ts.URL+"/end", GameRequest{GameID: "g1", State: snapshot(t, finishedBoard, 60, [2]int{25, 20})}, &end); code != http.StatusOK {
		t.Fatalf("end status=%d", code)
	}
	if end.Winner != "ONE" || end.Rows != 1 || end.Path == "" {
		t.Fatalf("end=%+v", end)
	}
	rows, err := store.ReadArchiveParquet(end.Path)
	if err != nil {
		t.Fatalf("ReadArchiveParquet: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != 1 || rows[0].Team != "ONE" || rows[0].Source != Source {
		t.Fatalf("rows=%+v", rows)
	}
	if !written.Has("g1") || srv.Sessions().Len() != 0 {
		t.Fatalf("game not marked written or session kept")
	}

	var e ErrorResponse
	if code := post(t, ts.URL+"/end", GameRequest{GameID: "g1", State: snapshot(t, finishedBoard, 60, [2]int{25, 20})}, &e); code != http.StatusNotFound {
		t.Fatalf("second end status=%d", code)
	}

	// Replaying an archived game ID records but does not write again.
	post(t, ts.URL+"/move", GameRequest{GameID: "g1", State: snapshot(t, fixtureBoard, 57, [2]int{20, 17})}, &mv)
	if code := post(t, ts.URL+"/end", GameRequest{GameID: "g1", State: snapshot(t, finishedBoard, 60, [2]int{25, 20})}, &end); code != http.StatusOK || !end.Skipped {
		t.Fatalf("replay end status=%d resp=%+v", code, end)
	}
	files, _ := store.ListArchiveFiles(dir)
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
}

func TestWebSocket_Session(t *testing.T) {
	dir := t.TempDir()
	_, ts := newTestServer(t, dir, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	exchange := func(msg WSMessage) WSMessage {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var reply WSMessage
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		return reply
	}

	if r := exchange(WSMessage{Type: MsgStart, GameID: "ws1"}); r.Type != MsgStart || r.GameID != "ws1" {
		t.Fatalf("start reply=%+v", r)
	}
	r := exchange(WSMessage{Type: MsgMove, State: snapshot(t, fixtureBoard, 57, [2]int{20, 17}), TimeoutMs: 400})
	if r.Type != MsgMove || r.Move == nil || !fixtureMoves()[r.Move.Text] {
		t.Fatalf("move reply=%+v", r)
	}
	if r := exchange(WSMessage{Type: "resign"}); r.Type != MsgError {
		t.Fatalf("unknown type reply=%+v", r)
	}
	r = exchange(WSMessage{Type: MsgEnd, State: snapshot(t, finishedBoard, 60, [2]int{1, 9})})
	if r.Type != MsgEnded || r.End == nil || r.End.Winner != "TWO" || r.End.Rows != 1 {
		t.Fatalf("end reply=%+v", r)
	}

	rows, err := store.ReadArchiveParquet(r.End.Path)
	if err != nil {
		t.Fatalf("ReadArchiveParquet: %v", err)
	}
	if rows[0].Value != -1 || rows[0].Winner != "TWO" {
		t.Fatalf("row=%+v", rows[0])
	}
}

func TestEngineFor_Budget(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)
	if srv.engineFor(0) != srv.engine {
		t.Fatalf("no timeout should reuse the engine")
	}
	if got := srv.engineFor(1000).Config.Budget; got != 800*time.Millisecond {
		t.Fatalf("budget=%v", got)
	}
	if got := srv.engineFor(100).Config.Budget; got != MinBudget {
		t.Fatalf("budget=%v", got)
	}
	if srv.engine.Config.Budget != time.Second {
		t.Fatalf("engine config mutated")
	}
}

func TestMove_ProvenWinHasFiniteScore(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	var resp MoveResponse
	code := post(t, ts.URL+"/move", GameRequest{State: snapshot(t, provenBoard, 20, [2]int{10, 10})}, &resp)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if resp.Score != search.ProvenScore || resp.Reason != string(search.StopConverged) {
		t.Fatalf("resp=%+v want score %v", resp, search.ProvenScore)
	}
}

func TestWebSocket_ProvenWinKeepsStream(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := conn.WriteJSON(WSMessage{Type: MsgMove, State: snapshot(t, provenBoard, 20, [2]int{10, 10})}); err != nil {
			t.Fatalf("write: %v", err)
		}
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var reply WSMessage
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if reply.Type != MsgMove || reply.Move == nil || reply.Move.Score != search.ProvenScore {
			t.Fatalf("reply %d=%+v", i, reply)
		}
	}
}

func TestWriteJSON_UnencodableIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, MoveResponse{Score: math.Inf(1)})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	var e ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || !strings.Contains(e.Error, "encode") {
		t.Fatalf("body=%q err=%v", rec.Body.String(), err)
	}
}
