// Package raster holds the pixel level operations on single band rasters:
// sampling, windows, class breaks and time series aggregation.
package raster

import (
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"sort"
)

// DefaultClasses is the number of breaks returned by Linear and Quantiles
// when no count is given.
const DefaultClasses = 5

// Limits is an optional value range overriding the raster min and max.
type Limits struct {
	Min float64
	Max float64
}

// MinMax returns the smallest and largest valid value. ok is false when the
// raster holds no valid value.
func MinMax(r entities.Raster) (lo, hi float64, ok bool) {
	values := r.Valid()
	if len(values) == 0 {
		return 0, 0, false
	}
	return floats.Min(values), floats.Max(values), true
}

// Linear returns k evenly spaced breaks between the raster min and max, or
// between limits when given.
func Linear(r entities.Raster, limits *Limits, k int) ([]float64, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: linear needs at least 2 classes, got %d", entities.ErrInvalid, k)
	}

	var lo, hi float64
	if limits != nil {
		lo, hi = limits.Min, limits.Max
	} else {
		var ok bool
		if lo, hi, ok = MinMax(r); !ok {
			return nil, fmt.Errorf("%w: raster %d has no valid values", entities.ErrInvalid, r.ID)
		}
	}
	if lo > hi {
		return nil, fmt.Errorf("%w: limits %v > %v", entities.ErrInvalid, lo, hi)
	}

	return floats.Span(make([]float64, k), lo, hi), nil
}

// Quantiles returns k breaks at evenly spaced cumulative probabilities, from
// the minimum to the maximum value.
func Quantiles(r entities.Raster, k int) ([]float64, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: quantiles needs at least 2 classes, got %d", entities.ErrInvalid, k)
	}

	values := r.Valid()
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: raster %d has no valid values", entities.ErrInvalid, r.ID)
	}
	sort.Float64s(values)

	out := make([]float64, k)
	for i, p := range floats.Span(make([]float64, k), 0, 1) {
		out[i] = stat.Quantile(p, stat.Empirical, values, nil)
	}
	return out, nil
}
