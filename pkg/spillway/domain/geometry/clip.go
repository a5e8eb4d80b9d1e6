package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// Clip intersects g with the rectangle b. It returns nil when nothing of g
// lies inside b. The input is never modified.
func Clip(g orb.Geometry, b orb.Bound) orb.Geometry {
	if !IntersectsBound(g, b) {
		return nil
	}
	if gb := g.Bound(); b.Contains(gb.Min) && b.Contains(gb.Max) {
		return orb.Clone(g)
	}
	return clean(clip.Geometry(b, orb.Clone(g)))
}

// clean removes repeated vertices and parts that degenerated to zero length
// or zero area while clipping.
func clean(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.LineString:
		ls := orb.LineString(dedupe(g))
		if len(ls) < 2 {
			return nil
		}
		return ls
	case orb.MultiLineString:
		out := make(orb.MultiLineString, 0, len(g))
		for _, ls := range g {
			if c, ok := clean(ls).(orb.LineString); ok {
				out = append(out, c)
			}
		}
		return collapseLines(out)
	case orb.Ring:
		if p, ok := clean(orb.Polygon{g}).(orb.Polygon); ok {
			return p[0]
		}
		return nil
	case orb.Polygon:
		out := make(orb.Polygon, 0, len(g))
		for i, r := range g {
			r = orb.Ring(dedupe(r))
			if len(r) < 4 || planar.Area(r) == 0 {
				if i == 0 {
					return nil
				}
				continue
			}
			out = append(out, r)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(g))
		for _, p := range g {
			if c, ok := clean(p).(orb.Polygon); ok {
				out = append(out, c)
			}
		}
		switch len(out) {
		case 0:
			return nil
		case 1:
			return out[0]
		default:
			return out
		}
	case orb.Collection:
		out := make(orb.Collection, 0, len(g))
		for _, c := range g {
			if c = clean(c); c != nil {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return g
	}
}

func collapseLines(mls orb.MultiLineString) orb.Geometry {
	switch len(mls) {
	case 0:
		return nil
	case 1:
		return mls[0]
	default:
		return mls
	}
}

// dedupe drops consecutive duplicate vertices in place.
func dedupe(pts []orb.Point) []orb.Point {
	if len(pts) < 2 {
		return pts
	}
	out := pts[:1]
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
