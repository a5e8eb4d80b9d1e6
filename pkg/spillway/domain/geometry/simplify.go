package geometry

import (
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// maxSimplifyAttempts bounds how often the tolerance is halved before the
// input is returned unsimplified.
const maxSimplifyAttempts = 8

// SimplifyPreserveTopology reduces vertices with Douglas-Peucker while
// keeping the result valid and of the same shape: no ring collapses, no
// dropped parts and no new self-intersections. When a tolerance produces an
// invalid result it is halved and retried. The input is never modified.
func SimplifyPreserveTopology(g orb.Geometry, tolerance float64) orb.Geometry {
	if g == nil {
		return nil
	}
	if tolerance <= 0 {
		return orb.Clone(g)
	}

	switch g.(type) {
	case orb.Point, orb.MultiPoint, orb.Bound:
		return orb.Clone(g)
	case orb.Collection:
		c := g.(orb.Collection)
		out := make(orb.Collection, 0, len(c))
		for _, part := range c {
			out = append(out, SimplifyPreserveTopology(part, tolerance))
		}
		return out
	}

	wasValid := Valid(g)
	for attempt, tol := 0, tolerance; attempt < maxSimplifyAttempts; attempt, tol = attempt+1, tol/2 {
		out := simplify.DouglasPeucker(tol).Simplify(orb.Clone(g))
		if preserves(g, out, wasValid) {
			return out
		}
	}
	return orb.Clone(g)
}

// preserves reports whether out is an acceptable simplification of in.
func preserves(in, out orb.Geometry, mustBeValid bool) bool {
	if out == nil || entities.KindOf(in) != entities.KindOf(out) || partCount(in) != partCount(out) {
		return false
	}
	if mustBeValid {
		return Valid(out)
	}
	return true
}

// partCount counts lines, rings and polygons so dropped parts can be detected.
func partCount(g orb.Geometry) int {
	switch g := g.(type) {
	case orb.MultiLineString:
		return len(g)
	case orb.Polygon:
		return len(g)
	case orb.MultiPolygon:
		n := 0
		for _, p := range g {
			n += len(p) + 1
		}
		return n
	default:
		return 1
	}
}
