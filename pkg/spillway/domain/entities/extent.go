package entities

import "github.com/paulmach/orb"

// Extent is a bounding box tagged with its coordinate reference system.
type Extent struct {
	Bound orb.Bound
	SRID  int
}

// Values returns the extent as (west, south, east, north).
func (e Extent) Values() [4]float64 {
	return [4]float64{e.Bound.Min[0], e.Bound.Min[1], e.Bound.Max[0], e.Bound.Max[1]}
}
