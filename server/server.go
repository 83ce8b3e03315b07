// Package server exposes the search engine over HTTP and WebSocket.
//
// Each game is a Session. Moves the engine chooses are recorded with their
// features and written to the archive once the client reports the end of the
// game.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
	"github.com/JakobRinke/FishAI/store"
)

// TimeoutReserve is kept back from a client supplied move timeout for
// encoding and network latency.
const TimeoutReserve = 200 * time.Millisecond

// MinBudget is the smallest search budget a move request can get.
const MinBudget = 50 * time.Millisecond

type Config struct {
	Engine *search.Engine
	// ArchiveDir receives one parquet file per finished game. Empty disables
	// recording to disk.
	ArchiveDir string
	// Written dedupes archived game IDs across restarts. Optional.
	Written     *store.WrittenLog
	LogRequests bool
	Logger      *slog.Logger
}

type Server struct {
	engine     *search.Engine
	archiveDir string
	written    *store.WrittenLog
	sessions   *Sessions
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	logReqs    bool
}

func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:     cfg.Engine,
		archiveDir: cfg.ArchiveDir,
		written:    cfg.Written,
		sessions:   NewSessions(),
		logger:     logger,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logReqs:    cfg.LogRequests,
	}, nil
}

func (s *Server) Sessions() *Sessions { return s.sessions }

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.logReqs {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/start", s.handleStart)
	r.Post("/move", s.handleMove)
	r.Post("/end", s.handleEnd)
	r.Get("/ws", s.handleWS)
	return r
}

// writeJSON encodes before writing the header so an unencodable value turns
// into a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(ErrorResponse{Error: "encode response: " + err.Error()})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{APIVersion: "1", Author: "FishAI", Version: "1.0.0"})
}

func decodeRequest(r *http.Request) (GameRequest, error) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid payload: %w", err)
	}
	return req, nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.sessions.Start(req.GameID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.logger.Info("game started", "game_id", req.GameID)
	writeJSON(w, http.StatusOK, map[string]string{"game_id": req.GameID})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.Move(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.End(req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownGame):
		return http.StatusNotFound
	case errors.Is(err, game.ErrParse), errors.Is(err, search.ErrGameOver), errors.Is(err, errNoState):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errNoState = errors.New("state is required")

func requestState(req GameRequest) (game.State, error) {
	if req.State == nil {
		return game.State{}, errNoState
	}
	return game.FromSnapshot(*req.State)
}

func (s *Server) engineFor(timeoutMs int) *search.Engine {
	if timeoutMs <= 0 {
		return s.engine
	}
	budget := time.Duration(timeoutMs)*time.Millisecond - TimeoutReserve
	if budget < MinBudget {
		budget = MinBudget
	}
	e := *s.engine
	e.Config.Budget = budget
	return &e
}

// Move answers a move request. When the search fails on a playable state
// the first legal move is returned instead and the failure is logged.
func (s *Server) Move(ctx context.Context, req GameRequest) (MoveResponse, error) {
	state, err := requestState(req)
	if err != nil {
		return MoveResponse{}, err
	}
	if rules.IsGameOver(&state) {
		return MoveResponse{}, search.ErrGameOver
	}

	res, err := s.engineFor(req.TimeoutMs).BestMove(ctx, &state)
	fallback := false
	if err != nil {
		moves := rules.PossibleMoves(&state)
		if len(moves) == 0 {
			return MoveResponse{}, err
		}
		s.logger.Error("search failed, playing first legal move", "game_id", req.GameID, "turn", state.Turn, "err", err)
		res = search.Result{Move: moves[0], Reason: "fallback"}
		fallback = true
	}

	if req.GameID != "" {
		sess, err := s.sessions.GetOrStart(req.GameID)
		if err != nil {
			return MoveResponse{}, err
		}
		sess.Record(&state, res)
	}

	s.logger.Info("move",
		"game_id", req.GameID,
		"turn", state.Turn,
		"move", res.Move.String(),
		"score", res.Score,
		"depth", res.Depth,
		"reason", string(res.Reason),
		"elapsed", res.Elapsed,
	)
	return MoveResponse{
		Move:      res.Move.DTO(),
		Text:      res.Move.String(),
		Score:     search.ClampScore(res.Score),
		Depth:     res.Depth,
		Reason:    string(res.Reason),
		Nodes:     res.Nodes,
		ElapsedMs: float64(res.Elapsed.Microseconds()) / 1000,
		Fallback:  fallback,
	}, nil
}

// End closes the session, labels its rows with the outcome of the final
// state and archives them unless the game was archived before.
func (s *Server) End(req GameRequest) (EndResponse, error) {
	final, err := requestState(req)
	if err != nil {
		return EndResponse{}, err
	}
	sess, err := s.sessions.Remove(req.GameID)
	if err != nil {
		return EndResponse{}, err
	}
	rows, winner := sess.Finish(&final)
	resp := EndResponse{GameID: req.GameID, Winner: winner, Rows: len(rows)}

	switch {
	case len(rows) == 0 || s.archiveDir == "":
	case s.written != nil && s.written.Has(req.GameID):
		resp.Skipped = true
	default:
		path, err := store.WriteArchiveBatchParquetAtomic(s.archiveDir, rows)
		if err != nil {
			return resp, fmt.Errorf("archive %s: %w", req.GameID, err)
		}
		resp.Path = path
		if s.written != nil {
			if err := s.written.Add(req.GameID); err != nil {
				s.logger.Error("written log", "game_id", req.GameID, "err", err)
			}
		}
	}
	s.logger.Info("game ended", "game_id", req.GameID, "winner", winner, "rows", len(rows), "path", resp.Path, "skipped", resp.Skipped)
	return resp, nil
}
