package selfplay

import (
	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
	"github.com/JakobRinke/FishAI/store"
)

// RecordTurn captures state before res.Move is played. Value and Winner stay
// empty until LabelOutcome runs.
func RecordTurn(gameID, source string, state *game.State, res search.Result) store.ArchiveTurnRow {
	team := rules.CurrentTeam(state)
	row := store.ArchiveTurnRow{
		GameID:    gameID,
		Turn:      int32(state.Turn),
		StartTeam: state.StartTeam.String(),
		Team:      team.String(),
		Board:     state.Board.String(),
		FishOne:   int32(state.FishOf(game.One)),
		FishTwo:   int32(state.FishOf(game.Two)),
		Score:     float32(search.ClampScore(res.Score)),
		Depth:     int32(res.Depth),
		Nodes:     res.Nodes,
		ElapsedMs: float32(res.Elapsed.Seconds() * 1000),
		Reason:    string(res.Reason),
		Features:  eval.Vector(state, team),
		Source:    source,
	}
	row.SetMove(res.Move)

	if len(res.Depths) > 0 {
		depths := make([]store.DepthSummary, 0, len(res.Depths))
		for _, d := range res.Depths {
			depths = append(depths, store.DepthSummary{
				Depth:    d.Depth,
				Move:     d.Move.String(),
				Score:    search.ClampScore(d.Score),
				Nodes:    d.Nodes,
				Complete: d.Complete,
			})
		}
		// Encoding floats and strings cannot fail.
		row.SearchJSON, _ = store.EncodeSearchJSON(depths)
	}
	return row
}

// LabelOutcome fills Value and Winner of every row from the final state.
func LabelOutcome(rows []store.ArchiveTurnRow, final *game.State) {
	winner := "DRAW"
	if w, ok := rules.Winner(final); ok {
		winner = w.String()
	}
	for i := range rows {
		team, err := game.ParseTeam(rows[i].Team)
		if err != nil {
			continue
		}
		rows[i].Value = rules.Result(final, team)
		rows[i].Winner = winner
	}
}
