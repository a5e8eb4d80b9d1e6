// Package render draws map tiles: vector features are rasterized with a fill
// and stroke colour, raster layers are colorized through a named colour ramp.
package render

import (
	"fmt"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"image/color"
	"slices"
	"sort"
	"strings"
)

// DefaultRamp is used when a request names no style.
const DefaultRamp = "Spectral_r"

// reversedSuffix flips any ramp, as in "Spectral_r".
const reversedSuffix = "_r"

// builtinRamps are ColorBrewer palettes keyed by name.
var builtinRamps = map[string][]string{
	"Spectral": {"#d53e4f", "#fc8d59", "#fee08b", "#e6f598", "#99d594", "#3288bd"},
	"RdYlBu":   {"#d73027", "#fc8d59", "#fee090", "#e0f3f8", "#91bfdb", "#4575b4"},
	"YlGnBu":   {"#ffffcc", "#c7e9b4", "#7fcdbb", "#41b6c4", "#2c7fb8", "#253494"},
	"Greys":    {"#f7f7f7", "#cccccc", "#969696", "#636363", "#252525"},
	"Blues":    {"#eff3ff", "#bdd7e7", "#6baed6", "#3182bd", "#08519c"},
	"Reds":     {"#fee5d9", "#fcae91", "#fb6a4a", "#de2d26", "#a50f15"},
	"Viridis":  {"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"},
}

// Ramp is an ordered list of colour stops.
type Ramp []colorful.Color

// ParseRamp builds a ramp from hex colours.
func ParseRamp(hexes []string) (Ramp, error) {
	if len(hexes) < 2 {
		return nil, fmt.Errorf("%w: a colour ramp needs at least 2 stops", entities.ErrInvalid)
	}
	ramp := make(Ramp, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("%w: bad colour %q: %v", entities.ErrInvalid, h, err)
		}
		ramp = append(ramp, c)
	}
	return ramp, nil
}

// Reversed returns the ramp with its stops in opposite order.
func (r Ramp) Reversed() Ramp {
	out := slices.Clone(r)
	slices.Reverse(out)
	return out
}

// Color maps v onto the ramp given one break per stop. Values between two
// breaks are blended in Lab space; values beyond the ends clamp.
func (r Ramp) Color(v float64, breaks []float64) color.RGBA {
	if len(r) == 0 {
		return color.RGBA{}
	}
	if len(breaks) != len(r) || v <= breaks[0] {
		return toRGBA(r[0])
	}
	if v >= breaks[len(breaks)-1] {
		return toRGBA(r[len(r)-1])
	}

	i := sort.SearchFloat64s(breaks, v)
	lo, hi := breaks[i-1], breaks[i]
	t := 0.0
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	return toRGBA(r[i-1].BlendLab(r[i], t).Clamped())
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Ramps resolves ramp names, including the reversed "_r" variants.
type Ramps map[string]Ramp

// NewRamps parses the built in ramps plus any custom ones. Custom ramps
// override built in ramps of the same name.
func NewRamps(custom map[string][]string) (Ramps, error) {
	out := make(Ramps, len(builtinRamps)+len(custom))
	for _, src := range []map[string][]string{builtinRamps, custom} {
		for name, hexes := range src {
			ramp, err := ParseRamp(hexes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse ramp %s: %w", name, err)
			}
			out[name] = ramp
		}
	}
	return out, nil
}

// Lookup finds a ramp by name. A trailing "_r" reverses it.
func (rs Ramps) Lookup(name string) (Ramp, error) {
	if ramp, ok := rs[name]; ok {
		return ramp, nil
	}
	if base, ok := strings.CutSuffix(name, reversedSuffix); ok {
		if ramp, ok := rs[base]; ok {
			return ramp.Reversed(), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown style %q", entities.ErrInvalid, name)
}

// Names lists the available ramps without their reversed variants.
func (rs Ramps) Names() []string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
