package tiling_test

import (
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/tiling"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
)

func TestResolve_WorldTile(t *testing.T) {
	e := tiling.Resolve(entities.TileAddress{Z: 0, X: 0, Y: 0})

	assert.Equal(t, srs.WGS84, e.SRID)
	assert.InDelta(t, -180.0, e.Bound.Min[0], 1e-9)
	assert.InDelta(t, 180.0, e.Bound.Max[0], 1e-9)
	assert.InDelta(t, -85.05112877980659, e.Bound.Min[1], 1e-9)
	assert.InDelta(t, 85.05112877980659, e.Bound.Max[1], 1e-9)
}

func TestResolve_MatchesMaptile(t *testing.T) {
	tests := []entities.TileAddress{
		{Z: 10, X: 553, Y: 347},
		{Z: 4, X: 7, Y: 8},
		{Z: 11, X: 342, Y: 790},
		{Z: 18, X: 140000, Y: 90000},
	}

	for _, tt := range tests {
		t.Run(tt.String(), func(t *testing.T) {
			want := maptile.New(uint32(tt.X), uint32(tt.Y), maptile.Zoom(tt.Z)).Bound()
			got := tiling.Resolve(tt).Bound
			assert.InDelta(t, want.Min[0], got.Min[0], 1e-9)
			assert.InDelta(t, want.Min[1], got.Min[1], 1e-9)
			assert.InDelta(t, want.Max[0], got.Max[0], 1e-9)
			assert.InDelta(t, want.Max[1], got.Max[1], 1e-9)
		})
	}
}

func TestResolve_SouthEastOfNorthWest(t *testing.T) {
	for z := 0; z <= 8; z++ {
		n := 1 << uint(z)
		for x := 0; x < n; x += max(1, n/7) {
			for y := 0; y < n; y += max(1, n/5) {
				b := tiling.Resolve(entities.TileAddress{Z: z, X: x, Y: y}).Bound
				if !(b.Min[1] < b.Max[1] && b.Min[0] < b.Max[0]) {
					t.Fatalf("degenerate tile %d/%d/%d: %v", z, x, y, b)
				}
			}
		}
	}
}

func TestResolve_OutOfRangeDoesNotPanic(t *testing.T) {
	b := tiling.Resolve(entities.TileAddress{Z: 2, X: 0, Y: 100}).Bound
	assert.False(t, b.Intersects(orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}))
}

func TestResolveMercator(t *testing.T) {
	e, err := tiling.ResolveMercator(entities.TileAddress{Z: 1, X: 1, Y: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, e.Bound.Min[0], 1e-6)
	assert.InDelta(t, 0.0, e.Bound.Min[1], 1e-6)
	assert.InDelta(t, 20037508.342789244, e.Bound.Max[0], 1e-6)
	assert.InDelta(t, 20037508.342789244, e.Bound.Max[1], 1e-3)
}

func TestTolerance(t *testing.T) {
	assert.InDelta(t, 156543.03392804097, tiling.Tolerance(0), 1e-6)
	assert.InDelta(t, tiling.Tolerance(0)/1024, tiling.Tolerance(10), 1e-9)

	for z := 1; z <= 19; z++ {
		assert.Less(t, tiling.Tolerance(z), tiling.Tolerance(z-1))
	}
	for z := 19; z < 40; z++ {
		assert.Equal(t, tiling.Tolerance(19), tiling.Tolerance(z))
	}
	assert.Equal(t, tiling.Tolerance(0), tiling.Tolerance(-3))
}

func TestTransformTolerance(t *testing.T) {
	tol := tiling.Tolerance(10)

	deg, err := tiling.TransformTolerance(tol, srs.WebMercator, srs.WGS84)
	require.NoError(t, err)
	assert.InDelta(t, tol/orb.EarthRadius*180/math.Pi, deg, 1e-12)

	same, err := tiling.TransformTolerance(tol, srs.WebMercator, srs.WebMercator)
	require.NoError(t, err)
	assert.Equal(t, tol, same)
}

func TestTileTransform(t *testing.T) {
	b := orb.Bound{Min: orb.Point{100, 200}, Max: orb.Point{300, 600}}
	tr := tiling.NewTileTransform(b, tiling.DefaultExtent)

	assert.Equal(t, orb.Point{0, 0}, tr.Point(orb.Point{100, 600}))
	assert.Equal(t, orb.Point{4096, 4096}, tr.Point(orb.Point{300, 200}))
	assert.Equal(t, orb.Point{2048, 1024}, tr.Point(orb.Point{200, 500}))

	ls := orb.LineString{{100, 600}, {300, 200}}
	out := tr.Geometry(ls).(orb.LineString)
	assert.Equal(t, orb.Point{100, 600}, ls[0])
	assert.Equal(t, orb.Point{4096, 4096}, out[1])
}
