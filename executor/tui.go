package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JakobRinke/FishAI/executor/inference"
)

type model struct {
	gamesPlayed int
	totalRows   int
	wins        map[string]int
	moves       int64
	evals       int64
	startTime   time.Time
	recentGames []string
	updates     chan GameUpdate
	counter     *countingEvaluator
	stats       interface{ Stats() inference.RuntimeStats }
	batch       inference.RuntimeStats
}

func initialModel(updates chan GameUpdate, counter *countingEvaluator, stats interface{ Stats() inference.RuntimeStats }) model {
	return model{
		startTime: time.Now(),
		updates:   updates,
		counter:   counter,
		stats:     stats,
		wins:      map[string]int{},
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan GameUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.moves = totalMoves.Load()
		if m.counter != nil {
			m.evals = m.counter.calls.Load()
		}
		if m.stats != nil {
			m.batch = m.stats.Stats()
		}
		return m, tickCmd()
	case GameUpdate:
		m.gamesPlayed++
		m.totalRows += msg.Rows
		m.wins[msg.Result.Winner]++
		logMsg := fmt.Sprintf("Worker %d: Winner %s, Fish %d:%d, Turns %d", msg.WorkerID, msg.Result.Winner, msg.Result.Fish[0], msg.Result.Fish[1], msg.Result.Turns)
		m.recentGames = append([]string{logMsg}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := float64(m.gamesPlayed) / duration.Seconds()
	movesPerSec := float64(m.moves) / duration.Seconds()
	evalsPerSec := float64(m.evals) / duration.Seconds()
	if duration.Seconds() < 1 {
		gamesPerSec = 0
		movesPerSec = 0
		evalsPerSec = 0
	}

	s := fmt.Sprintf("Games Played:   %d\n", m.gamesPlayed)
	s += fmt.Sprintf("Wins ONE/TWO/DRAW: %d/%d/%d\n", m.wins["ONE"], m.wins["TWO"], m.wins["DRAW"])
	s += fmt.Sprintf("Rows Recorded:  %d\n", m.totalRows)
	s += fmt.Sprintf("Total Moves:    %d\n", m.moves)
	s += fmt.Sprintf("Duration:       %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Games/Sec:      %.2f\n", gamesPerSec)
	s += fmt.Sprintf("Moves/Sec:      %.2f\n", movesPerSec)
	s += fmt.Sprintf("Evals/Sec:      %.0f\n", evalsPerSec)
	if m.stats != nil {
		s += fmt.Sprintf("ONNX batch avg=%.1f last=%d q=%d run avg=%.2fms\n", m.batch.AvgBatchSize, m.batch.LastBatchSize, m.batch.QueueLen, m.batch.AvgRunMs)
	}

	s += "\nRecent Games:\n"
	for _, g := range m.recentGames {
		s += g + "\n"
	}

	s += "\nPress q to quit.\n"
	return s
}
