// Package tiling resolves slippy-map tile addresses into bounding boxes and
// maps zoom levels to simplification tolerances.
package tiling

import (
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulmach/orb"
	"math"
)

// TileToLonLat returns longitude and latitude of the north west corner of
// tile x,y at zoom z.
func TileToLonLat(x, y, z int) (lon, lat float64) {
	n := math.Exp2(float64(z))
	lon = float64(x)/n*360 - 180
	lat = math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * 180 / math.Pi
	return lon, lat
}

// Resolve converts a tile address into its WGS84 extent. Addresses outside
// the grid are not rejected; they produce a box no stored geometry can
// intersect.
func Resolve(t entities.TileAddress) entities.Extent {
	west, north := TileToLonLat(t.X, t.Y, t.Z)
	east, south := TileToLonLat(t.X+1, t.Y+1, t.Z)
	return entities.Extent{
		Bound: orb.Bound{
			Min: orb.Point{west, south},
			Max: orb.Point{east, north},
		},
		SRID: srs.WGS84,
	}
}

// ResolveMercator is Resolve reprojected into the tile grid SRID.
func ResolveMercator(t entities.TileAddress) (entities.Extent, error) {
	return srs.TransformExtent(Resolve(t), srs.WebMercator)
}
