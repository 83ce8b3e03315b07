// floes.go implements random board generation.

package game

import (
	"math/rand"
)

// FloeSettings controls how boards are generated.
type FloeSettings struct {
	MaxFish      int // Highest fish count on a single tile
	Holes        int // Tiles removed per half of the board
	MinOneFish   int // Guaranteed 1-fish tiles on the whole board
	MirrorHalves bool
}

// DefaultFloeSettings matches the tournament board: up to 4 fish, a few holes,
// enough single-fish tiles for both teams to place, point symmetric.
var DefaultFloeSettings = FloeSettings{MaxFish: 4, Holes: 4, MinOneFish: 2 * PenguinsPerTeam, MirrorHalves: true}

// RandomBoard generates a board. If rng is nil the board is derived
// deterministically from salt.
func RandomBoard(rng *rand.Rand, settings FloeSettings, salt uint64) Board {
	var b Board
	maxFish := settings.MaxFish
	if maxFish < 1 {
		maxFish = 1
	}
	if maxFish > 9 {
		maxFish = 9
	}

	half := BoardFields
	if settings.MirrorHalves {
		half = BoardFields / 2
	}

	draw := func(i int, n int, mix uint64) int {
		if rng != nil {
			return rng.Intn(n)
		}
		return int(deterministicU64Fast(uint64(i), salt^mix) % uint64(n))
	}

	for i := 0; i < half; i++ {
		b[i] = FieldWithFish(1 + draw(i, maxFish, 0))
	}

	for h := 0; h < settings.Holes; h++ {
		b[draw(h, half, 0x401E)] = EmptyField
	}

	// Top up single-fish tiles. Each tile in a mirrored half counts twice.
	perTile := 1
	if settings.MirrorHalves {
		perTile = 2
	}
	ones := 0
	for i := 0; i < half; i++ {
		if b[i].Fish() == 1 {
			ones += perTile
		}
	}
	for i := 0; ones < settings.MinOneFish && i < half; i++ {
		idx := draw(i, half, 0x0F15)
		if b[idx].Fish() > 1 {
			b[idx] = FieldWithFish(1)
			ones += perTile
		}
	}
	for i := 0; ones < settings.MinOneFish && i < half; i++ {
		if b[i].Fish() != 1 {
			b[i] = FieldWithFish(1)
			ones += perTile
		}
	}

	if settings.MirrorHalves {
		for i := 0; i < half; i++ {
			b[BoardFields-1-i] = b[i]
		}
	}
	return b
}

// NewRandomState is a fresh game on a generated board.
func NewRandomState(rng *rand.Rand, settings FloeSettings, start Team, salt uint64) State {
	return NewState(RandomBoard(rng, settings, salt), start)
}

// deterministicU64Fast is a simple deterministic hasher for reproducibility.
func deterministicU64Fast(a, b uint64) uint64 {
	// Variant of splitmix64
	x := a + b
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
