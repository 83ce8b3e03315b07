package convert

import (
	"sync"

	"github.com/JakobRinke/FishAI/game"
	"github.com/JakobRinke/FishAI/rules"
)

const (
	Width     = game.BoardSize
	Height    = game.BoardSize
	Channels  = 7
	FloatSize = Channels * Width * Height

	// FishScale normalizes tile fish counts; generated boards carry at most 4.
	FishScale = 4.0
	// ScoreScale normalizes collected fish into roughly [0, 1].
	ScoreScale = 100.0
)

var floatPool = sync.Pool{
	New: func() interface{} {
		b := make([]float32, FloatSize)
		return &b
	},
}

func GetFloatBuffer() *[]float32 {
	return floatPool.Get().(*[]float32)
}

func PutFloatBuffer(b *[]float32) {
	floatPool.Put(b)
}

// StateToFloat32 encodes the state from ego's point of view into a pooled
// float32 slice. Caller must return it with PutFloatBuffer.
//
// Output shape: [Channels, Height, Width] (C, H, W) in direct coordinates.
// Channel layout:
// 0 Fish on tile / FishScale
// 1 Ego penguins
// 2 Opponent penguins
// 3 Tile still has fish
// 4 Ego score plane
// 5 Opponent score plane
// 6 Ego to move plane
func StateToFloat32(state *game.State, ego game.Team) *[]float32 {
	dataPtr := GetFloatBuffer()
	data := *dataPtr
	clear(data)

	plane := Height * Width
	fill := func(c int, val float32) {
		for i := c * plane; i < (c+1)*plane; i++ {
			data[i] = val
		}
	}

	for i := range state.Board {
		f := state.Board[i]
		if team, ok := f.Penguin(); ok {
			if team == ego {
				data[1*plane+i] = 1
			} else {
				data[2*plane+i] = 1
			}
			continue
		}
		if fish := f.Fish(); fish > 0 {
			data[0*plane+i] = float32(fish) / FishScale
			data[3*plane+i] = 1
		}
	}

	fill(4, float32(state.FishOf(ego))/ScoreScale)
	fill(5, float32(state.FishOf(ego.Opponent()))/ScoreScale)
	if rules.CurrentTeam(state) == ego {
		fill(6, 1)
	}

	return dataPtr
}
