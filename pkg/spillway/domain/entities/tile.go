package entities

import (
	"fmt"
)

// MaxZoom is the deepest zoom level accepted in a tile address.
const MaxZoom = 30

// TileAddress identifies one cell of the slippy-map quad tree.
type TileAddress struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// InRange reports whether 0 <= x,y < 2^z.
func (t TileAddress) InRange() bool {
	if t.Z < 0 || t.Z > MaxZoom || t.X < 0 || t.Y < 0 {
		return false
	}
	n := 1 << uint(t.Z)
	return t.X < n && t.Y < n
}

func (t TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}
