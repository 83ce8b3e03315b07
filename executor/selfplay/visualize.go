// visualize.go - Console visualization for debugging self-play games.
//
// PrintBoard outputs the floe as an offset hex grid plus the value network
// input planes for the team to move.
package selfplay

import (
	"fmt"
	"log"
	"strings"

	"github.com/JakobRinke/FishAI/executor/convert"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
)

func PrintBoard(state *game.State) {
	log.Print(RenderBoard(state))
}

// RenderBoard draws odd rows shifted by one column so neighbours line up.
func RenderBoard(state *game.State) string {
	var sb strings.Builder
	team := rules.CurrentTeam(state)
	sb.WriteString(fmt.Sprintf("\n=== TRACE Turn %d (to move=%s, fish %d:%d) ===\n",
		state.Turn, team, state.FishOf(game.One), state.FishOf(game.Two)))
	for y := 0; y < game.BoardSize; y++ {
		if y%2 == 1 {
			sb.WriteString(" ")
		}
		for x := 0; x < game.BoardSize; x++ {
			f := state.Board[game.Direct{X: x, Y: y}.Index()]
			tok := "."
			switch {
			case f.IsOccupied():
				tok = string(f.Token())
			case f.Fish() > 0:
				tok = fmt.Sprintf("%d", f.Fish())
			}
			sb.WriteString(tok + " ")
		}
		sb.WriteString("\n")
	}
	if state.LastMove != nil {
		sb.WriteString("last move: " + state.LastMove.String() + "\n")
	}

	printEncodedLayers(&sb, state, team)
	return sb.String()
}

var channelNames = [convert.Channels]string{
	"fish",
	"ego_penguins",
	"enemy_penguins",
	"fish_mask",
	"ego_score",
	"enemy_score",
	"ego_to_move",
}

func printEncodedLayers(sb *strings.Builder, state *game.State, ego game.Team) {
	dataPtr := convert.StateToFloat32(state, ego)
	data := *dataPtr
	defer convert.PutFloatBuffer(dataPtr)

	sb.WriteString("\n--- TRACE Encoded input layers (C,H,W) ---\n")
	for c := 0; c < convert.Channels; c++ {
		sb.WriteString(fmt.Sprintf("Layer %d (%s):\n", c, channelNames[c]))
		base := c * convert.Height * convert.Width
		for y := 0; y < convert.Height; y++ {
			for x := 0; x < convert.Width; x++ {
				v := data[base+y*convert.Width+x]
				if v == 0 {
					sb.WriteString("   . ")
					continue
				}
				sb.WriteString(fmt.Sprintf("%4.2f ", v))
			}
			sb.WriteString("\n")
		}
	}
}
