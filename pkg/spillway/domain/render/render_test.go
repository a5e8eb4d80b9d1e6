package render_test

import (
	"bytes"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/render"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func newRenderer(t *testing.T) *render.Renderer {
	r, err := render.New(render.Config{TileSize: 256, Fill: "#ff0000", Stroke: "#0000ff"})
	require.NoError(t, err)
	return r
}

func TestRamps_Lookup(t *testing.T) {
	ramps, err := render.NewRamps(map[string][]string{"mono": {"#000000", "#ffffff"}})
	require.NoError(t, err)

	spectral, err := ramps.Lookup("Spectral")
	require.NoError(t, err)
	reversed, err := ramps.Lookup("Spectral_r")
	require.NoError(t, err)
	assert.Equal(t, spectral[0], reversed[len(reversed)-1])

	_, err = ramps.Lookup("mono")
	assert.NoError(t, err)

	_, err = ramps.Lookup("nope")
	assert.ErrorIs(t, err, entities.ErrInvalid)
}

func TestRamp_Color(t *testing.T) {
	ramp, err := render.ParseRamp([]string{"#000000", "#ffffff"})
	require.NoError(t, err)
	breaks := []float64{0, 10}

	assert.Equal(t, color.RGBA{A: 0xff}, ramp.Color(-5, breaks))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, ramp.Color(99, breaks))

	mid := ramp.Color(5, breaks)
	assert.Greater(t, mid.R, uint8(0))
	assert.Less(t, mid.R, uint8(0xff))
}

func TestParseRamp_Invalid(t *testing.T) {
	_, err := render.ParseRamp([]string{"#000000"})
	assert.ErrorIs(t, err, entities.ErrInvalid)
	_, err = render.ParseRamp([]string{"#000000", "red"})
	assert.ErrorIs(t, err, entities.ErrInvalid)
}

func TestNew_UnknownDefaultRamp(t *testing.T) {
	_, err := render.New(render.Config{DefaultRamp: "nope"})
	assert.Error(t, err)
}

func TestSize(t *testing.T) {
	r := newRenderer(t)

	size, err := r.Size(0)
	require.NoError(t, err)
	assert.Equal(t, 256, size)

	size, err = r.Size(512)
	require.NoError(t, err)
	assert.Equal(t, 512, size)

	_, err = r.Size(8)
	assert.ErrorIs(t, err, entities.ErrInvalid)
}

func TestVector_FillsPolygon(t *testing.T) {
	r := newRenderer(t)
	bound := orb.Bound{Max: orb.Point{100, 100}}
	square := orb.Polygon{{{10, 10}, {90, 10}, {90, 90}, {10, 90}, {10, 10}}}

	img := r.Vector([]orb.Geometry{square}, bound, 64)

	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, img.RGBAAt(32, 32))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(1, 1))
}

func TestVector_StrokesLine(t *testing.T) {
	r := newRenderer(t)
	bound := orb.Bound{Max: orb.Point{100, 100}}
	line := orb.LineString{{0, 50}, {100, 50}}

	img := r.Vector([]orb.Geometry{line}, bound, 100)

	assert.Greater(t, img.RGBAAt(50, 50).B, uint8(0))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(50, 10))
}

func TestRaster(t *testing.T) {
	r := newRenderer(t)
	ras := entities.Raster{
		ID:     1,
		SRID:   srs.WebMercator,
		Affine: entities.Affine{0, 50, 0, 100, 0, -50},
		Width:  2,
		Height: 2,
		Data:   []float64{0, 1, 2, 3},
	}
	bound := orb.Bound{Max: orb.Point{200, 200}}

	img, err := r.Raster(ras, bound, 4, "", nil)
	require.NoError(t, err)

	// raster covers the lower left quarter of the tile
	assert.Equal(t, uint8(0), img.RGBAAt(3, 0).A)
	assert.Equal(t, uint8(0xff), img.RGBAAt(0, 2).A)
	assert.Equal(t, uint8(0xff), img.RGBAAt(1, 3).A)
	assert.NotEqual(t, img.RGBAAt(0, 2), img.RGBAAt(1, 3))

	_, err = r.Raster(ras, bound, 4, "nope", nil)
	assert.ErrorIs(t, err, entities.ErrInvalid)
}

func TestEncode(t *testing.T) {
	r := newRenderer(t)
	img := r.Vector(nil, orb.Bound{Max: orb.Point{1, 1}}, 256)

	var buf bytes.Buffer
	require.NoError(t, render.Encode(&buf, img, entities.FormatPNG))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())

	buf.Reset()
	require.NoError(t, render.Encode(&buf, img, entities.FormatJPEG))
	_, err = jpeg.Decode(&buf)
	require.NoError(t, err)

	assert.ErrorIs(t, render.Encode(&buf, img, entities.FormatKML), entities.ErrUnsupportedFormat)
}
