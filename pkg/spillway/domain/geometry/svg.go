package geometry

import (
	"fmt"
	"github.com/paulmach/orb"
	"io"
	"math"
	"strconv"
	"strings"
)

// SVGPath encodes g as SVG path data with the y axis negated so north points
// up. Lines are one M followed by a single L whose coordinate pairs repeat
// implicitly ("M 0 0 L 1 0 1 -1"). Rings are closed with Z and omit their
// repeated last vertex; points become single move commands.
func SVGPath(g orb.Geometry, precision int) string {
	var b strings.Builder
	writeSVGPath(&b, g, precision)
	return strings.TrimSpace(b.String())
}

func writeSVGPath(b *strings.Builder, g orb.Geometry, precision int) {
	switch g := g.(type) {
	case orb.Point:
		b.WriteString("M ")
		writeSVGPoint(b, g, precision)
		b.WriteByte(' ')
	case orb.MultiPoint:
		for _, p := range g {
			writeSVGPath(b, p, precision)
		}
	case orb.LineString:
		writeSVGLine(b, g, false, precision)
	case orb.MultiLineString:
		for _, ls := range g {
			writeSVGLine(b, ls, false, precision)
		}
	case orb.Ring:
		writeSVGLine(b, g, true, precision)
	case orb.Polygon:
		for _, r := range g {
			writeSVGLine(b, r, true, precision)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			writeSVGPath(b, p, precision)
		}
	case orb.Collection:
		for _, c := range g {
			writeSVGPath(b, c, precision)
		}
	case orb.Bound:
		writeSVGPath(b, g.ToPolygon(), precision)
	}
}

func writeSVGLine(b *strings.Builder, pts []orb.Point, closed bool, precision int) {
	if closed && len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	for i, p := range pts {
		switch i {
		case 0:
			b.WriteString("M ")
		case 1:
			b.WriteString("L ")
		}
		writeSVGPoint(b, p, precision)
		b.WriteByte(' ')
	}
	if closed && len(pts) > 0 {
		b.WriteString("Z ")
	}
}

func writeSVGPoint(b *strings.Builder, p orb.Point, precision int) {
	b.WriteString(formatCoord(p[0], precision))
	b.WriteByte(' ')
	b.WriteString(formatCoord(-p[1], precision))
}

func formatCoord(v float64, precision int) string {
	if precision >= 0 {
		scale := math.Pow(10, float64(precision))
		v = math.Round(v*scale) / scale
	}
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SVGShape is one path of an SVG document.
type SVGShape struct {
	ID       string
	Geometry orb.Geometry
}

// WriteSVG writes a standalone SVG document whose view box covers bound.
func WriteSVG(w io.Writer, bound orb.Bound, shapes []SVGShape, precision int) error {
	width := bound.Max[0] - bound.Min[0]
	height := bound.Max[1] - bound.Min[1]
	_, err := fmt.Fprintf(w,
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s %s %s %s">`+"\n<g>\n",
		formatCoord(bound.Min[0], precision), formatCoord(-bound.Max[1], precision),
		formatCoord(width, precision), formatCoord(height, precision),
	)
	if err != nil {
		return fmt.Errorf("failed to write svg header: %w", err)
	}

	for _, s := range shapes {
		if s.Geometry == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "<path id=%q d=%q/>\n", s.ID, SVGPath(s.Geometry, precision)); err != nil {
			return fmt.Errorf("failed to write svg path: %w", err)
		}
	}

	if _, err := io.WriteString(w, "</g>\n</svg>\n"); err != nil {
		return fmt.Errorf("failed to write svg footer: %w", err)
	}
	return nil
}
