package server

import (
	"github.com/JakobRinke/FishAI/game"
)

type InfoResponse struct {
	APIVersion string `json:"apiversion"`
	Author     string `json:"author"`
	Version    string `json:"version"`
}

// GameRequest is the body of /start, /move and /end. GameID is optional for
// /move; without it nothing is recorded.
type GameRequest struct {
	GameID    string         `json:"game_id,omitempty"`
	State     *game.Snapshot `json:"state,omitempty"`
	TimeoutMs int            `json:"timeout_ms,omitempty"`
}

type MoveResponse struct {
	Move      game.MoveDTO `json:"move"`
	Text      string       `json:"text"`
	Score     float64      `json:"score"`
	Depth     int          `json:"depth"`
	Reason    string       `json:"reason"`
	Nodes     int64        `json:"nodes"`
	ElapsedMs float64      `json:"elapsed_ms"`
	Fallback  bool         `json:"fallback,omitempty"`
}

type EndResponse struct {
	GameID  string `json:"game_id"`
	Winner  string `json:"winner"`
	Rows    int    `json:"rows"`
	Path    string `json:"path,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// WSMessage is one frame of the /ws protocol. Clients send start, move and
// end; the server answers with move, ended or error.
type WSMessage struct {
	Type      string         `json:"type"`
	GameID    string         `json:"game_id,omitempty"`
	State     *game.Snapshot `json:"state,omitempty"`
	TimeoutMs int            `json:"timeout_ms,omitempty"`

	Move  *MoveResponse `json:"move,omitempty"`
	End   *EndResponse  `json:"end,omitempty"`
	Error string        `json:"error,omitempty"`
}

const (
	MsgStart = "start"
	MsgMove  = "move"
	MsgEnd   = "end"
	MsgEnded = "ended"
	MsgError = "error"
)
