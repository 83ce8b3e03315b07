// Package main analyzes a single position: it runs the search and prints
// every completed depth.
//
// Usage:
//
//	analyze -turn 57 -start ONE -fish 20,17 board.txt
//	cat board.txt | analyze -turn 57
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JakobRinke/FishAI/executor/eval"
	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/logging"
	"github.com/JakobRinke/FishAI/rules"
)

func main() {
	turn := flag.Int("turn", 0, "Turn number of the position")
	start := flag.String("start", "ONE", "Team that moved first (ONE or TWO)")
	fish := flag.String("fish", "0,0", "Collected fish of ONE and TWO")
	budget := flag.Duration("budget", search.DefaultConfig.Budget, "Search time budget")
	maxDepth := flag.Int("max-depth", search.DefaultConfig.MaxDepth, "Maximum search depth")
	weightsPath := flag.String("weights", "", "JSON file of evaluator feature weights")
	showMoves := flag.Bool("moves", false, "Print every root move of the deepest completed depth")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	logger, err := logging.New(os.Stderr, "text", *logLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}

	var in io.Reader = os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatalf("open board: %v", err)
		}
		defer f.Close()
		in = f
	}
	text, err := io.ReadAll(in)
	if err != nil {
		log.Fatalf("read board: %v", err)
	}

	state, err := parsePosition(string(text), *turn, *start, *fish)
	if err != nil {
		log.Fatalf("position: %v", err)
	}

	weights := eval.DefaultWeights
	if *weightsPath != "" {
		if weights, err = eval.LoadWeights(*weightsPath); err != nil {
			log.Fatalf("weights: %v", err)
		}
	}
	ev, err := eval.NewWeighted(weights)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}

	team := rules.CurrentTeam(&state)
	fmt.Printf("%s\nturn %d, %s to move, fish %d:%d\n\n", state.Board.String(), state.Turn, team, state.Fish[0], state.Fish[1])
	printBreakdown(os.Stdout, ev.Breakdown(&state, eval.Self))

	engine := search.NewEngine(ev, search.Config{MaxDepth: *maxDepth, Budget: *budget}, logger)
	res, err := engine.BestMove(context.Background(), &state)
	if err != nil {
		log.Fatalf("search: %v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "depth\tmove\tscore\tnodes\tcomplete")
	for _, d := range res.Depths {
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%d\t%v\n", d.Depth, d.Move, d.Score, d.Nodes, d.Complete)
	}
	tw.Flush()
	fmt.Printf("\nbest %s score %.3f depth %d (%s) in %s, %d nodes\n",
		res.Move, res.Score, res.Depth, res.Reason, res.Elapsed.Round(time.Millisecond), res.Nodes)

	if *showMoves && len(res.Depths) > 0 {
		last := res.Depths[len(res.Depths)-1]
		fmt.Println()
		tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "move\tscore")
		for _, i := range last.Order {
			fmt.Fprintf(tw, "%s\t%.3f\n", last.Moves[i], last.Scores[i])
		}
		tw.Flush()
	}
}

func parsePosition(board string, turn int, start, fish string) (game.State, error) {
	b, err := game.ParseBoard(board)
	if err != nil {
		return game.State{}, err
	}
	startTeam, err := game.ParseTeam(start)
	if err != nil {
		return game.State{}, err
	}
	parts := strings.Split(fish, ",")
	if len(parts) != game.Teams {
		return game.State{}, fmt.Errorf("fish %q: want two comma separated counts", fish)
	}
	var counts [game.Teams]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return game.State{}, fmt.Errorf("fish %q: bad count %q", fish, p)
		}
		counts[i] = n
	}
	if turn < 0 {
		return game.State{}, fmt.Errorf("negative turn %d", turn)
	}
	return game.State{Board: b, Turn: turn, Fish: counts, StartTeam: startTeam}, nil
}

func printBreakdown(w io.Writer, parts map[string]float64) {
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "feature\tweighted")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%.3f\n", name, parts[name])
	}
	tw.Flush()
	fmt.Fprintln(w)
}
