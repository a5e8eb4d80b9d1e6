// Package geometry implements the planar operations of the tile pipeline:
// spatial predicates, clipping, topology-preserving simplification and
// text encodings.
package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/peterstace/simplefeatures/geom"
)

// Shape is a geometry converted once for repeated predicate checks.
type Shape struct {
	g  geom.Geometry
	ok bool
}

// NewShape converts g. A geometry that cannot be converted matches nothing.
func NewShape(g orb.Geometry) Shape {
	sg, err := toGeom(g)
	return Shape{g: sg, ok: err == nil}
}

// IntersectsPoint reports whether p lies inside or on the boundary of s.
func (s Shape) IntersectsPoint(p orb.Point) bool {
	return s.ok && geom.Intersects(s.g, geom.NewPointXY(p[0], p[1]).AsGeometry())
}

func toGeom(g orb.Geometry) (geom.Geometry, error) {
	switch v := g.(type) {
	case orb.Ring:
		g = orb.Polygon{v}
	case orb.Bound:
		g = v.ToPolygon()
	}
	data, err := wkb.Marshal(g)
	if err != nil {
		return geom.Geometry{}, err
	}
	return geom.UnmarshalWKB(data, geom.NoValidate{})
}

func pair(a, b orb.Geometry) (geom.Geometry, geom.Geometry, bool) {
	if a == nil || b == nil {
		return geom.Geometry{}, geom.Geometry{}, false
	}
	ga, err := toGeom(a)
	if err != nil {
		return geom.Geometry{}, geom.Geometry{}, false
	}
	gb, err := toGeom(b)
	if err != nil {
		return geom.Geometry{}, geom.Geometry{}, false
	}
	return ga, gb, true
}

// Intersects reports whether a and b share at least one point.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil || !a.Bound().Intersects(b.Bound()) {
		return false
	}
	ga, gb, ok := pair(a, b)
	return ok && geom.Intersects(ga, gb)
}

// IntersectsBound is Intersects against a rectangle.
func IntersectsBound(g orb.Geometry, b orb.Bound) bool {
	if g == nil || !g.Bound().Intersects(b) {
		return false
	}
	if p, ok := g.(orb.Point); ok {
		return b.Contains(p)
	}
	return Intersects(g, b.ToPolygon())
}

// Contains reports whether b lies in a with at least one interior point in
// common (DE-9IM contains, as in SpatiaLite).
func Contains(a, b orb.Geometry) bool {
	ga, gb, ok := pair(a, b)
	if !ok {
		return false
	}
	contains, err := geom.Contains(ga, gb)
	return err == nil && contains
}

// Within reports whether a lies entirely within b.
func Within(a, b orb.Geometry) bool {
	return Contains(b, a)
}

// Valid reports whether g is a non empty, well formed geometry: lines have
// two distinct vertices, rings are closed and simple, holes lie inside their
// shell and polygons of a multipolygon do not overlap.
func Valid(g orb.Geometry) bool {
	switch g := g.(type) {
	case nil:
		return false
	case orb.Point, orb.Bound:
		return true
	case orb.Collection:
		for _, c := range g {
			if !Valid(c) {
				return false
			}
		}
		return len(g) > 0
	}

	sg, err := toGeom(g)
	if err != nil || sg.IsEmpty() {
		return false
	}
	return sg.Validate() == nil
}
