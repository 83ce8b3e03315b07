package main

import (
	"testing"

	"github.com/JakobRinke/FishAI/game"
)

func TestParsePosition(t *testing.T) {
	board := "00000000\n0000000R\n00000B00\n0B000000\n10R0R102\n00010000\n001000B0\n1R0100B0\n"
	s, err := parsePosition(board, 57, "R", "20, 17")
	if err != nil {
		t.Fatalf("parsePosition: %v", err)
	}
	if s.Turn != 57 || s.StartTeam != game.One || s.Fish != [2]int{20, 17} {
		t.Fatalf("state=%+v", s)
	}

	for _, fish := range []string{"1", "a,b", "-1,2"} {
		if _, err := parsePosition(board, 0, "ONE", fish); err == nil {
			t.Fatalf("fish %q: expected error", fish)
		}
	}
	if _, err := parsePosition(board, 0, "GREEN", "0,0"); err == nil {
		t.Fatalf("expected team error")
	}
	if _, err := parsePosition(board, -1, "ONE", "0,0"); err == nil {
		t.Fatalf("expected turn error")
	}
}
