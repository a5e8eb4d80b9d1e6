package tiling

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// DefaultExtent is the integer coordinate range of a binary vector tile.
const DefaultExtent = 4096

// TileTransform translates projected coordinates to the tile's top left
// corner and scales them into [0, extent]. The y axis points down.
type TileTransform struct {
	origin orb.Point
	scaleX float64
	scaleY float64
}

// NewTileTransform builds the transform for a tile envelope b in projected units.
func NewTileTransform(b orb.Bound, extent float64) TileTransform {
	t := TileTransform{origin: orb.Point{b.Min[0], b.Max[1]}}
	if w := b.Max[0] - b.Min[0]; w > 0 {
		t.scaleX = extent / w
	}
	if h := b.Max[1] - b.Min[1]; h > 0 {
		t.scaleY = extent / h
	}
	return t
}

// Point applies the transform to a single coordinate.
func (t TileTransform) Point(p orb.Point) orb.Point {
	return orb.Point{
		(p[0] - t.origin[0]) * t.scaleX,
		(t.origin[1] - p[1]) * t.scaleY,
	}
}

// Geometry returns a transformed copy of g.
func (t TileTransform) Geometry(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), t.Point)
}
