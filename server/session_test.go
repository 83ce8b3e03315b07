package server

import (
	"sync"
	"testing"

	"github.com/JakobRinke/FishAI/executor/search"
	"github.com/JakobRinke/FishAI/game"
)

func TestSessions_ConcurrentGetOrStartSharesSession(t *testing.T) {
	sessions := NewSessions()
	state := game.NewState(game.Board{}, game.One)
	state.Board[0] = game.FieldWithFish(1)
	res := search.Result{Move: game.Placing(game.Doubled{X: 0, Y: 0}), Depth: 1}

	const n = 32
	got := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := sessions.GetOrStart("g1")
			if err != nil {
				t.Errorf("GetOrStart: %v", err)
				return
			}
			st := state.Clone()
			sess.Record(&st, res)
			got[i] = sess
		}(i)
	}
	wg.Wait()

	for i, sess := range got {
		if sess != got[0] {
			t.Fatalf("call %d got a different session", i)
		}
	}
	if sessions.Len() != 1 || got[0].Len() != n {
		t.Fatalf("sessions=%d rows=%d want 1 and %d", sessions.Len(), got[0].Len(), n)
	}
	if _, err := sessions.GetOrStart(""); err == nil {
		t.Fatalf("empty game id accepted")
	}
}
