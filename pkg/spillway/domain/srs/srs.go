// Package srs transforms geometries between spatial reference systems
// identified by EPSG codes.
package srs

import (
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
	"sync"
)

const (
	WGS84       = 4326
	WebMercator = 3857
)

var aliases = map[int]int{
	900913: WebMercator,
	3785:   WebMercator,
	102100: WebMercator,
	102113: WebMercator,
}

var geographic = map[int]bool{
	4326: true,
	4269: true,
	4258: true,
	4283: true,
	4617: true,
	4674: true,
}

var repository = sync.OnceValue(wgs84.EPSG)

// Normalize maps legacy web mercator codes onto 3857.
func Normalize(srid int) int {
	if alias, ok := aliases[srid]; ok {
		return alias
	}
	return srid
}

// IsGeographic reports whether coordinates of srid are degrees.
func IsGeographic(srid int) bool {
	return geographic[Normalize(srid)]
}

// Supported reports whether srid can be used as a transform endpoint.
func Supported(srid int) bool {
	srid = Normalize(srid)
	if srid == WGS84 || srid == WebMercator {
		return true
	}
	return srid > 0 && repository().Code(srid) != nil
}

// Transformer returns the point projection from one SRID to another.
func Transformer(from, to int) (orb.Projection, error) {
	from, to = Normalize(from), Normalize(to)
	switch {
	case from == to:
		return func(p orb.Point) orb.Point { return p }, nil
	case from == WGS84 && to == WebMercator:
		return project.WGS84.ToMercator, nil
	case from == WebMercator && to == WGS84:
		return project.Mercator.ToWGS84, nil
	}

	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("%w: srid %d -> %d", entities.ErrInvalid, from, to)
	}
	fromCRS := repository().Code(from)
	if fromCRS == nil {
		return nil, fmt.Errorf("%w: unsupported srid %d", entities.ErrInvalid, from)
	}
	toCRS := repository().Code(to)
	if toCRS == nil {
		return nil, fmt.Errorf("%w: unsupported srid %d", entities.ErrInvalid, to)
	}

	transform := wgs84.Transform(fromCRS, toCRS)
	return func(p orb.Point) orb.Point {
		x, y, _ := transform(p[0], p[1], 0)
		return orb.Point{x, y}
	}, nil
}

// TransformPoint reprojects a single coordinate.
func TransformPoint(p orb.Point, from, to int) (orb.Point, error) {
	proj, err := Transformer(from, to)
	if err != nil {
		return orb.Point{}, err
	}
	return proj(p), nil
}

// TransformGeometry returns a reprojected copy of g. The input is never
// modified.
func TransformGeometry(g orb.Geometry, from, to int) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	proj, err := Transformer(from, to)
	if err != nil {
		return nil, err
	}
	return project.Geometry(orb.Clone(g), proj), nil
}

// edgeSamples is the number of points sampled per side when reprojecting an
// extent, so curved edges in the target system are still covered.
const edgeSamples = 8

// TransformExtent reprojects an extent and returns the envelope of the result.
func TransformExtent(e entities.Extent, to int) (entities.Extent, error) {
	if Normalize(e.SRID) == Normalize(to) {
		return entities.Extent{Bound: e.Bound, SRID: to}, nil
	}
	proj, err := Transformer(e.SRID, to)
	if err != nil {
		return entities.Extent{}, err
	}

	b := e.Bound
	out := orb.Bound{Min: proj(b.Min), Max: proj(b.Min)}
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	for i := 0; i <= edgeSamples; i++ {
		f := float64(i) / edgeSamples
		for _, p := range []orb.Point{
			{b.Min[0] + f*w, b.Min[1]},
			{b.Min[0] + f*w, b.Max[1]},
			{b.Min[0], b.Min[1] + f*h},
			{b.Max[0], b.Min[1] + f*h},
		} {
			out = out.Extend(proj(p))
		}
	}
	return entities.Extent{Bound: out, SRID: to}, nil
}
