package viewer

import (
	"encoding/json"
	"strings"

	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/store"
)

type GameSummary struct {
	GameID     string `json:"game_id"`
	StartedNs  *int64 `json:"started_ns,omitempty"`
	TurnCount  int32  `json:"turn_count"`
	MaxTurn    int32  `json:"max_turn"`
	Winner     string `json:"winner"`
	Source     string `json:"source"`
	SourceFile string `json:"file"`
}

type GamesResponse struct {
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Sort   string        `json:"sort"`
	Dir    string        `json:"dir"`
	Games  []GameSummary `json:"games"`
}

// StatsRow aggregates archived games by source and winner.
type StatsRow struct {
	Source   string  `json:"source"`
	Winner   string  `json:"winner"`
	Games    int64   `json:"games"`
	Rows     int64   `json:"rows"`
	AvgDepth float64 `json:"avg_depth"`
}

// Turn is one archived decision as the UI consumes it.
type Turn struct {
	Turn      int32                `json:"turn"`
	Team      string               `json:"team"`
	Board     [][]string           `json:"board"`
	Fish      [2]int32             `json:"fish"`
	Move      game.MoveDTO         `json:"move"`
	MoveText  string               `json:"move_text"`
	Score     float32              `json:"score"`
	Depth     int32                `json:"depth"`
	Nodes     int64                `json:"nodes"`
	ElapsedMs float32              `json:"elapsed_ms"`
	Reason    string               `json:"reason"`
	Features  []float32            `json:"features,omitempty"`
	Value     float32              `json:"value"`
	Search    []store.DepthSummary `json:"search,omitempty"`
}

type TurnsResponse struct {
	GameID string `json:"game_id"`
	Winner string `json:"winner"`
	Source string `json:"source"`
	Turns  []Turn `json:"turns"`
}

// turnFromRow converts an archive row. Rows with an undecodable search
// summary keep the rest of their data. Proven scores in older archives are
// stored as infinities and are clamped here.
func turnFromRow(r store.ArchiveTurnRow) Turn {
	move := r.Move()
	t := Turn{
		Turn:      r.Turn,
		Team:      r.Team,
		Board:     boardTokens(r.Board),
		Fish:      [2]int32{r.FishOne, r.FishTwo},
		Move:      move.DTO(),
		MoveText:  move.String(),
		Score:     float32(search.ClampScore(float64(r.Score))),
		Depth:     r.Depth,
		Nodes:     r.Nodes,
		ElapsedMs: r.ElapsedMs,
		Reason:    r.Reason,
		Features:  r.Features,
		Value:     r.Value,
	}
	if len(r.SearchJSON) > 0 {
		_ = json.Unmarshal(r.SearchJSON, &t.Search)
	}
	return t
}

func boardTokens(board string) [][]string {
	var out [][]string
	for _, line := range strings.Split(board, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		row := make([]string, 0, len(line))
		for _, r := range line {
			row = append(row, string(r))
		}
		out = append(out, row)
	}
	return out
}
