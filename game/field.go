package game

import "fmt"

// Field is a single tile. A tile holding a penguin always has zero fish.
type Field struct {
	fish     uint8
	occupied bool
	team     Team
}

// EmptyField is a consumed tile: no fish, no penguin.
var EmptyField = Field{}

func FieldWithFish(n int) Field {
	return Field{fish: uint8(n)}
}

func FieldWithPenguin(t Team) Field {
	return Field{occupied: true, team: t}
}

func (f Field) Fish() int { return int(f.fish) }

func (f Field) Penguin() (Team, bool) { return f.team, f.occupied }

func (f Field) IsOccupied() bool { return f.occupied }

// IsEmpty reports a tile with neither fish nor penguin.
func (f Field) IsEmpty() bool { return !f.occupied && f.fish == 0 }

// Place puts a penguin of team t onto the tile and returns the fish it caught.
func (f *Field) Place(t Team) int {
	catch := int(f.fish)
	*f = FieldWithPenguin(t)
	return catch
}

// Token is the board text character: a fish digit or a team letter.
func (f Field) Token() rune {
	if f.occupied {
		return f.team.Letter()
	}
	return rune('0' + f.fish)
}

func (f Field) String() string { return string(f.Token()) }

// ParseField reads a single board token.
func ParseField(r rune) (Field, error) {
	if r >= '0' && r <= '9' {
		return FieldWithFish(int(r - '0')), nil
	}
	if t, ok := TeamFromLetter(r); ok {
		return FieldWithPenguin(t), nil
	}
	return Field{}, fmt.Errorf("%w: invalid field %q", ErrParse, r)
}
