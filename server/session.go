package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/executor/selfplay"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
	"github.com/JakobRinke/FishAI/store"
)

const Source = "server"

var ErrUnknownGame = errors.New("unknown game")

// Session collects the rows of one game played through the server.
type Session struct {
	ID string

	mu   sync.Mutex
	rows []store.ArchiveTurnRow
}

func NewSession(id string) *Session {
	return &Session{ID: id}
}

// Record stores the decision taken in state.
func (s *Session) Record(state *game.State, res search.Result) {
	row := selfplay.RecordTurn(s.ID, Source, state, res)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Finish labels the recorded rows with final's outcome and hands them over.
// The session is empty afterwards.
func (s *Session) Finish(final *game.State) ([]store.ArchiveTurnRow, string) {
	s.mu.Lock()
	rows := s.rows
	s.rows = nil
	s.mu.Unlock()

	selfplay.LabelOutcome(rows, final)
	winner := "DRAW"
	if w, ok := rules.Winner(final); ok {
		winner = w.String()
	}
	return rows, winner
}

// Sessions is the set of running games keyed by game ID.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: map[string]*Session{}}
}

// Start registers id, replacing any running session of the same ID.
func (s *Sessions) Start(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("game_id is required")
	}
	sess := NewSession(id)
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// GetOrStart returns the running session or starts one, so clients that skip
// /start still get their moves recorded. Lookup and insert share one lock so
// concurrent first moves of a game land in the same session.
func (s *Sessions) GetOrStart(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("game_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess := NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

// Remove detaches the session from the set.
func (s *Sessions) Remove(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	delete(s.sessions, id)
	return sess, nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
