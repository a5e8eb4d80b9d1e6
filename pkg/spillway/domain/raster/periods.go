package raster

import (
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
)

// AggregatePeriods splits a time ordered stack of equally sized arrays into
// n consecutive groups and averages each group elementwise. As with numpy's
// array_split the first len(stack)%n groups hold one extra slice.
func AggregatePeriods(stack [][]float64, n int) ([][]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: periods must be positive, got %d", entities.ErrInvalid, n)
	}
	if n > len(stack) {
		return nil, fmt.Errorf("%w: cannot split %d rasters into %d periods", entities.ErrInvalid, len(stack), n)
	}
	size := len(stack[0])
	for i, s := range stack {
		if len(s) != size {
			return nil, fmt.Errorf("%w: array %d has %d values, want %d", entities.ErrInvalid, i, len(s), size)
		}
	}

	base, extra := len(stack)/n, len(stack)%n
	out := make([][]float64, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + base
		if i < extra {
			end++
		}
		out = append(out, meanOf(stack[start:end], size))
		start = end
	}
	return out, nil
}

func meanOf(group [][]float64, size int) []float64 {
	out := make([]float64, size)
	for _, s := range group {
		for i, v := range s {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(group))
	}
	return out
}
