package tiling

import (
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulmach/orb"
	"math"
)

// TileSize is the nominal pixel width of a tile.
const TileSize = 256

// tolerances holds the ground distance of one tile pixel at zoom 0 to 19.
var tolerances = func() [20]float64 {
	var t [20]float64
	circumference := 2 * math.Pi * orb.EarthRadius
	for z := range t {
		t[z] = circumference / math.Exp2(float64(z+8))
	}
	return t
}()

// Tolerance returns the simplification tolerance in meters for zoom z.
// Zooms past the table clamp to its last entry.
func Tolerance(z int) float64 {
	if z < 0 {
		z = 0
	}
	if z >= len(tolerances) {
		z = len(tolerances) - 1
	}
	return tolerances[z]
}

// TransformTolerance expresses a tolerance given in fromSRID units in the
// units of toSRID. Only geographic targets of a projected source are
// converted; everything else keeps the value.
func TransformTolerance(tolerance float64, fromSRID, toSRID int) (float64, error) {
	if fromSRID == toSRID || !srs.IsGeographic(toSRID) || srs.IsGeographic(fromSRID) {
		return tolerance, nil
	}

	origin, err := srs.TransformPoint(orb.Point{0, 0}, fromSRID, toSRID)
	if err != nil {
		return 0, fmt.Errorf("failed to transform tolerance origin: %w", err)
	}
	offset, err := srs.TransformPoint(orb.Point{tolerance, 0}, fromSRID, toSRID)
	if err != nil {
		return 0, fmt.Errorf("failed to transform tolerance offset: %w", err)
	}
	return math.Abs(offset[0] - origin[0]), nil
}
