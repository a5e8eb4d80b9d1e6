package entities

import (
	"fmt"
	"strings"
)

// Format is an output encoding selected by path suffix or the format query param.
type Format string

const (
	FormatGeoJSON Format = "geojson"
	FormatJSON    Format = "json"
	FormatPBF     Format = "pbf"
	FormatKML     Format = "kml"
	FormatKMZ     Format = "kmz"
	FormatSVG     Format = "svg"
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpg"
	FormatTIFF    Format = "tif"
)

var formatAliases = map[string]Format{
	"geojson": FormatGeoJSON,
	"json":    FormatJSON,
	"pbf":     FormatPBF,
	"mvt":     FormatPBF,
	"kml":     FormatKML,
	"kmz":     FormatKMZ,
	"svg":     FormatSVG,
	"png":     FormatPNG,
	"jpg":     FormatJPEG,
	"jpeg":    FormatJPEG,
	"tif":     FormatTIFF,
	"tiff":    FormatTIFF,
}

// OutputFormat is a parsed format, optionally wrapped in a zip archive
// ("tif.zip").
type OutputFormat struct {
	Format Format
	Zipped bool
}

// ParseFormat accepts names like "pbf", "jpeg" or "tif.zip".
func ParseFormat(s string) (OutputFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	zipped := false
	if base, ok := strings.CutSuffix(s, ".zip"); ok {
		s = base
		zipped = true
	}

	f, ok := formatAliases[s]
	if !ok {
		return OutputFormat{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return OutputFormat{Format: f, Zipped: zipped}, nil
}

// ContentType of the encoded body.
func (o OutputFormat) ContentType() string {
	if o.Zipped {
		return "application/zip"
	}
	return o.Format.ContentType()
}

func (o OutputFormat) Extension() string {
	if o.Zipped {
		return string(o.Format) + ".zip"
	}
	return string(o.Format)
}

func (o OutputFormat) String() string {
	return o.Extension()
}

func (f Format) ContentType() string {
	switch f {
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatJSON:
		return "application/json"
	case FormatPBF:
		return "application/vnd.mapbox-vector-tile"
	case FormatKML:
		return "application/vnd.google-earth.kml+xml"
	case FormatKMZ:
		return "application/vnd.google-earth.kmz"
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// IsImage reports whether the format is a rendered raster image.
func (f Format) IsImage() bool {
	return f == FormatPNG || f == FormatJPEG || f == FormatTIFF
}
