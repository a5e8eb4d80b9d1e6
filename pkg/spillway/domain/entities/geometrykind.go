package entities

import (
	"fmt"
	"github.com/paulmach/orb"
)

// GeometryKind is the closed set of geometry types a layer can hold.
type GeometryKind int

const (
	KindUnknown GeometryKind = iota
	KindPoint
	KindMultiPoint
	KindLineString
	KindMultiLineString
	KindPolygon
	KindMultiPolygon
	KindCollection
)

var kindNames = map[GeometryKind]string{
	KindUnknown:         "Unknown",
	KindPoint:           "Point",
	KindMultiPoint:      "MultiPoint",
	KindLineString:      "LineString",
	KindMultiLineString: "MultiLineString",
	KindPolygon:         "Polygon",
	KindMultiPolygon:    "MultiPolygon",
	KindCollection:      "GeometryCollection",
}

// KindOf reports the kind of g. Rings and bounds count as polygons.
func KindOf(g orb.Geometry) GeometryKind {
	switch g.(type) {
	case orb.Point:
		return KindPoint
	case orb.MultiPoint:
		return KindMultiPoint
	case orb.LineString:
		return KindLineString
	case orb.MultiLineString:
		return KindMultiLineString
	case orb.Ring, orb.Polygon, orb.Bound:
		return KindPolygon
	case orb.MultiPolygon:
		return KindMultiPolygon
	case orb.Collection:
		return KindCollection
	default:
		return KindUnknown
	}
}

// ParseGeometryKind parses a GeoJSON type name.
func ParseGeometryKind(s string) (GeometryKind, error) {
	if s == "" {
		return KindUnknown, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: unknown geometry kind %q", ErrInvalid, s)
}

func (k GeometryKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Dimension is 0 for points, 1 for lines and 2 for areas. Collections and
// unknown kinds report -1.
func (k GeometryKind) Dimension() int {
	switch k {
	case KindPoint, KindMultiPoint:
		return 0
	case KindLineString, KindMultiLineString:
		return 1
	case KindPolygon, KindMultiPolygon:
		return 2
	default:
		return -1
	}
}

// StyleType is the map style layer type used to draw the kind.
func (k GeometryKind) StyleType() string {
	switch k.Dimension() {
	case 0:
		return "circle"
	case 1:
		return "line"
	default:
		return "fill"
	}
}

func (k GeometryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *GeometryKind) UnmarshalText(text []byte) error {
	parsed, err := ParseGeometryKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
