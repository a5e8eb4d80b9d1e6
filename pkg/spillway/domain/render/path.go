package render

import (
	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
	"math"
)

func polygon(z *vector.Rasterizer, p orb.Polygon) {
	for _, ring := range p {
		if len(ring) < 3 {
			continue
		}
		z.MoveTo(float32(ring[0][0]), float32(ring[0][1]))
		for _, pt := range ring[1:] {
			z.LineTo(float32(pt[0]), float32(pt[1]))
		}
		z.ClosePath()
	}
}

func square(z *vector.Rasterizer, p orb.Point, radius float64) {
	x0, y0 := float32(p[0]-radius), float32(p[1]-radius)
	x1, y1 := float32(p[0]+radius), float32(p[1]+radius)
	z.MoveTo(x0, y0)
	z.LineTo(x1, y0)
	z.LineTo(x1, y1)
	z.LineTo(x0, y1)
	z.ClosePath()
}

// segment adds a line segment as a quad of the given width.
func segment(z *vector.Rasterizer, a, b orb.Point, width float64) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	z.MoveTo(float32(a[0]+nx), float32(a[1]+ny))
	z.LineTo(float32(b[0]+nx), float32(b[1]+ny))
	z.LineTo(float32(b[0]-nx), float32(b[1]-ny))
	z.LineTo(float32(a[0]-nx), float32(a[1]-ny))
	z.ClosePath()
}
