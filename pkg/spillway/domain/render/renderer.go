package render

import (
	"fmt"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/raster"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/tiling"
	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
)

const (
	MinTileSize = 16
	MaxTileSize = 2048

	pointRadius = 2.0
	strokeWidth = 1.5
	jpegQuality = 90
)

// Config is built once at startup.
type Config struct {
	TileSize    int
	Ramps       map[string][]string
	DefaultRamp string
	Fill        string
	Stroke      string
}

// Renderer draws tiles. It holds no per request state.
type Renderer struct {
	tileSize    int
	ramps       Ramps
	defaultRamp string
	fill        color.RGBA
	stroke      color.RGBA
}

func New(cfg Config) (*Renderer, error) {
	ramps, err := NewRamps(cfg.Ramps)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		tileSize:    cfg.TileSize,
		ramps:       ramps,
		defaultRamp: cfg.DefaultRamp,
	}
	if r.tileSize == 0 {
		r.tileSize = tiling.TileSize
	}
	if r.defaultRamp == "" {
		r.defaultRamp = DefaultRamp
	}
	if _, err := ramps.Lookup(r.defaultRamp); err != nil {
		return nil, fmt.Errorf("failed to resolve default ramp: %w", err)
	}

	if r.fill, err = parseColor(cfg.Fill, "#3288bd99"); err != nil {
		return nil, err
	}
	if r.stroke, err = parseColor(cfg.Stroke, "#08306b"); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Ramps() Ramps {
	return r.ramps
}

// Size resolves the requested tile size, falling back to the configured one.
func (r *Renderer) Size(requested int) (int, error) {
	if requested == 0 {
		return r.tileSize, nil
	}
	if requested < MinTileSize || requested > MaxTileSize {
		return 0, fmt.Errorf("%w: size must be within [%d, %d]", entities.ErrInvalid, MinTileSize, MaxTileSize)
	}
	return requested, nil
}

// Vector draws geometries given in web mercator onto a tile covering
// bound, also in web mercator.
func (r *Renderer) Vector(geoms []orb.Geometry, bound orb.Bound, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	transform := tiling.NewTileTransform(bound, float64(size))

	for _, g := range geoms {
		r.draw(dst, transform.Geometry(g))
	}
	return dst
}

func (r *Renderer) draw(dst *image.RGBA, g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		r.fillPath(dst, r.stroke, func(z *vector.Rasterizer) { square(z, g, pointRadius) })
	case orb.MultiPoint:
		r.fillPath(dst, r.stroke, func(z *vector.Rasterizer) {
			for _, p := range g {
				square(z, p, pointRadius)
			}
		})
	case orb.LineString:
		r.strokeLines(dst, g)
	case orb.MultiLineString:
		r.strokeLines(dst, g...)
	case orb.Ring:
		r.draw(dst, orb.Polygon{g})
	case orb.Polygon:
		r.fillPath(dst, r.fill, func(z *vector.Rasterizer) { polygon(z, g) })
		r.strokeRings(dst, g...)
	case orb.MultiPolygon:
		r.fillPath(dst, r.fill, func(z *vector.Rasterizer) {
			for _, p := range g {
				polygon(z, p)
			}
		})
		for _, p := range g {
			r.strokeRings(dst, p...)
		}
	case orb.Collection:
		for _, c := range g {
			r.draw(dst, c)
		}
	case orb.Bound:
		r.draw(dst, g.ToPolygon())
	}
}

func (r *Renderer) fillPath(dst *image.RGBA, c color.RGBA, path func(z *vector.Rasterizer)) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	path(z)
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func (r *Renderer) strokeLines(dst *image.RGBA, lines ...orb.LineString) {
	r.fillPath(dst, r.stroke, func(z *vector.Rasterizer) {
		for _, ls := range lines {
			for i := 1; i < len(ls); i++ {
				segment(z, ls[i-1], ls[i], strokeWidth)
			}
		}
	})
}

func (r *Renderer) strokeRings(dst *image.RGBA, rings ...orb.Ring) {
	lines := make([]orb.LineString, len(rings))
	for i, ring := range rings {
		lines[i] = orb.LineString(ring)
	}
	r.strokeLines(dst, lines...)
}

// Raster colorizes the part of ras under a tile. Every pixel centre is
// mapped from web mercator into the raster grid; nodata and pixels outside
// the raster stay transparent.
func (r *Renderer) Raster(ras entities.Raster, bound orb.Bound, size int, style string, limits *raster.Limits) (*image.RGBA, error) {
	if style == "" {
		style = r.defaultRamp
	}
	ramp, err := r.ramps.Lookup(style)
	if err != nil {
		return nil, err
	}
	breaks, err := raster.Linear(ras, limits, len(ramp))
	if err != nil {
		return nil, err
	}

	toRaster, err := srs.Transformer(srs.WebMercator, ras.SRID)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	dx := (bound.Max[0] - bound.Min[0]) / float64(size)
	dy := (bound.Max[1] - bound.Min[1]) / float64(size)
	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			p := toRaster(orb.Point{
				bound.Min[0] + (float64(px)+0.5)*dx,
				bound.Max[1] - (float64(py)+0.5)*dy,
			})
			v, ok := raster.Sample(ras, p)
			if !ok {
				continue
			}
			dst.SetRGBA(px, py, ramp.Color(v, breaks))
		}
	}
	return dst, nil
}

// Encode writes img as png or jpg.
func Encode(w io.Writer, img image.Image, f entities.Format) error {
	var err error
	switch f {
	case entities.FormatPNG:
		err = png.Encode(w, img)
	case entities.FormatJPEG:
		err = jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: jpegQuality})
	default:
		return fmt.Errorf("%w: tiles cannot be rendered as %s", entities.ErrUnsupportedFormat, f)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s tile: %w", f, err)
	}
	return nil
}

// flatten composites img on white since jpeg has no alpha channel.
func flatten(img image.Image) image.Image {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}

func parseColor(hex, fallback string) (color.RGBA, error) {
	if hex == "" {
		hex = fallback
	}

	alpha := uint8(0xff)
	if len(hex) == 9 {
		var a uint8
		if _, err := fmt.Sscanf(hex[7:], "%02x", &a); err != nil {
			return color.RGBA{}, fmt.Errorf("%w: bad colour %q", entities.ErrInvalid, hex)
		}
		alpha, hex = a, hex[:7]
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: bad colour %q: %v", entities.ErrInvalid, hex, err)
	}
	rgba := toRGBA(c)
	// premultiply for image.RGBA
	scale := float64(alpha) / 0xff
	return color.RGBA{
		R: uint8(float64(rgba.R) * scale),
		G: uint8(float64(rgba.G) * scale),
		B: uint8(float64(rgba.B) * scale),
		A: alpha,
	}, nil
}
