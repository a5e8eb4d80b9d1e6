package entities

import (
	"github.com/paulmach/orb"
	"math"
	"time"
)

// Affine is a GDAL style geotransform:
// x = a[0] + col*a[1] + row*a[2], y = a[3] + col*a[4] + row*a[5].
type Affine [6]float64

// Forward maps a pixel position to a coordinate in the raster SRID.
func (a Affine) Forward(col, row float64) orb.Point {
	return orb.Point{
		a[0] + col*a[1] + row*a[2],
		a[3] + col*a[4] + row*a[5],
	}
}

// Inverse maps a coordinate to a fractional pixel position. ok is false for
// a singular transform.
func (a Affine) Inverse(p orb.Point) (col, row float64, ok bool) {
	det := a[1]*a[5] - a[2]*a[4]
	if det == 0 {
		return 0, 0, false
	}
	dx := p[0] - a[0]
	dy := p[1] - a[3]
	col = (a[5]*dx - a[2]*dy) / det
	row = (a[1]*dy - a[4]*dx) / det
	return col, row, true
}

// Raster is a single band grid with its georeferencing. Data is row major.
type Raster struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SRID      int       `json:"srid"`
	Affine    Affine    `json:"affine"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	NoData    *float64  `json:"nodata,omitempty"`
	Event     time.Time `json:"event"`
	Data      []float64 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Bound is the raster envelope in its SRID.
func (r Raster) Bound() orb.Bound {
	b := orb.Bound{Min: r.Affine.Forward(0, 0), Max: r.Affine.Forward(0, 0)}
	for _, p := range []orb.Point{
		r.Affine.Forward(float64(r.Width), 0),
		r.Affine.Forward(0, float64(r.Height)),
		r.Affine.Forward(float64(r.Width), float64(r.Height)),
	} {
		b = b.Extend(p)
	}
	return b
}

// At returns the value at col,row. ok is false outside the grid or on nodata.
func (r Raster) At(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= r.Width || row >= r.Height {
		return 0, false
	}
	v := r.Data[row*r.Width+col]
	if r.IsNoData(v) {
		return v, false
	}
	return v, true
}

func (r Raster) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return r.NoData != nil && v == *r.NoData
}

// Valid returns all values that are not nodata.
func (r Raster) Valid() []float64 {
	out := make([]float64, 0, len(r.Data))
	for _, v := range r.Data {
		if !r.IsNoData(v) {
			out = append(out, v)
		}
	}
	return out
}
