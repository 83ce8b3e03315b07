package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// handleWS serves one game stream per connection. Frames are handled in
// order; a search blocks the connection until it answers.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx := r.Context()
	replies := make(chan WSMessage, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-replies:
				if !ok {
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					s.logger.Error("websocket encode failed", "game_id", msg.GameID, "type", msg.Type, "err", err)
					data, _ = json.Marshal(WSMessage{Type: MsgError, GameID: msg.GameID, Error: "encode reply: " + err.Error()})
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					s.logger.Warn("websocket write failed", "err", err)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	defer func() {
		close(replies)
		<-done
	}()

	var gameID string
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "game_id", gameID, "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if msg.GameID == "" {
			msg.GameID = gameID
		}

		var reply WSMessage
		switch msg.Type {
		case MsgStart:
			if _, err := s.sessions.Start(msg.GameID); err != nil {
				reply = WSMessage{Type: MsgError, GameID: msg.GameID, Error: err.Error()}
				break
			}
			gameID = msg.GameID
			reply = WSMessage{Type: MsgStart, GameID: gameID}
		case MsgMove:
			resp, err := s.Move(ctx, GameRequest{GameID: msg.GameID, State: msg.State, TimeoutMs: msg.TimeoutMs})
			if err != nil {
				reply = WSMessage{Type: MsgError, GameID: msg.GameID, Error: err.Error()}
				break
			}
			reply = WSMessage{Type: MsgMove, GameID: msg.GameID, Move: &resp}
		case MsgEnd:
			resp, err := s.End(GameRequest{GameID: msg.GameID, State: msg.State})
			if err != nil {
				reply = WSMessage{Type: MsgError, GameID: msg.GameID, Error: err.Error()}
				break
			}
			reply = WSMessage{Type: MsgEnded, GameID: msg.GameID, End: &resp}
		default:
			reply = WSMessage{Type: MsgError, GameID: msg.GameID, Error: "unknown message type " + msg.Type}
		}

		select {
		case replies <- reply:
		case <-done:
			return
		}
	}
}
