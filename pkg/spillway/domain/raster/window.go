package raster

import (
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/geometry"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
	"math"
)

// Sample returns the pixel value under p, given in the raster SRID.
func Sample(r entities.Raster, p orb.Point) (float64, bool) {
	col, row, ok := r.Affine.Inverse(p)
	if !ok {
		return 0, false
	}
	return r.At(int(math.Floor(col)), int(math.Floor(row)))
}

// Window cuts the pixels covering b out of r. The result keeps the nodata
// value and carries an affine anchored at the window origin.
func Window(r entities.Raster, b orb.Bound) (entities.Raster, error) {
	c0, r0, c1, r1, ok := pixelRange(r, b)
	if !ok {
		return entities.Raster{}, fmt.Errorf("%w: bbox %v does not overlap raster %d", entities.ErrOutsideExtent, b, r.ID)
	}

	out := r
	out.Width = c1 - c0
	out.Height = r1 - r0
	origin := r.Affine.Forward(float64(c0), float64(r0))
	out.Affine[0], out.Affine[3] = origin[0], origin[1]
	out.Data = make([]float64, 0, out.Width*out.Height)
	for row := r0; row < r1; row++ {
		out.Data = append(out.Data, r.Data[row*r.Width+c0:row*r.Width+c1]...)
	}
	return out, nil
}

// pixelRange converts b into the half open column and row range it covers,
// clamped to the grid.
func pixelRange(r entities.Raster, b orb.Bound) (c0, r0, c1, r1 int, ok bool) {
	minCol, minRow := math.Inf(1), math.Inf(1)
	maxCol, maxRow := math.Inf(-1), math.Inf(-1)
	for _, p := range []orb.Point{b.Min, b.Max, b.LeftTop(), b.RightBottom()} {
		col, row, ok := r.Affine.Inverse(p)
		if !ok {
			return 0, 0, 0, 0, false
		}
		minCol, maxCol = math.Min(minCol, col), math.Max(maxCol, col)
		minRow, maxRow = math.Min(minRow, row), math.Max(maxRow, row)
	}

	c0 = clamp(int(math.Floor(minCol)), 0, r.Width)
	r0 = clamp(int(math.Floor(minRow)), 0, r.Height)
	c1 = clamp(int(math.Ceil(maxCol)), 0, r.Width)
	r1 = clamp(int(math.Ceil(maxRow)), 0, r.Height)
	if c1 == c0 && c0 < r.Width && minCol == maxCol {
		c1++
	}
	if r1 == r0 && r0 < r.Height && minRow == maxRow {
		r1++
	}
	return c0, r0, c1, r1, c0 < c1 && r0 < r1
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Summarize reduces r over g, given in the raster SRID: points sample the
// pixel underneath, lines and areas average every valid pixel whose centre
// g covers.
func Summarize(r entities.Raster, g orb.Geometry) (float64, error) {
	if p, ok := g.(orb.Point); ok {
		v, ok := Sample(r, p)
		if !ok {
			return 0, fmt.Errorf("%w: point %v has no value in raster %d", entities.ErrOutsideExtent, p, r.ID)
		}
		return v, nil
	}

	c0, r0, c1, r1, ok := pixelRange(r, g.Bound())
	if !ok {
		return 0, fmt.Errorf("%w: geometry does not overlap raster %d", entities.ErrOutsideExtent, r.ID)
	}

	shape := geometry.NewShape(g)
	var values []float64
	for row := r0; row < r1; row++ {
		for col := c0; col < c1; col++ {
			v, ok := r.At(col, row)
			if !ok {
				continue
			}
			if shape.IntersectsPoint(r.Affine.Forward(float64(col)+0.5, float64(row)+0.5)) {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: geometry covers no valid pixel of raster %d", entities.ErrOutsideExtent, r.ID)
	}
	return stat.Mean(values, nil), nil
}

// Rows returns the grid row by row with nodata pixels as nil.
func Rows(r entities.Raster) [][]*float64 {
	out := make([][]*float64, r.Height)
	for row := range out {
		out[row] = make([]*float64, r.Width)
		for col := range out[row] {
			if v, ok := r.At(col, row); ok {
				out[row][col] = &v
			}
		}
	}
	return out
}
