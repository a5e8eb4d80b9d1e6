package entities

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is a stored geometry of a layer. Geometry is always expressed in
// the SRID of the owning layer.
type Feature struct {
	ID         int64
	Layer      string
	Geometry   orb.Geometry
	Properties geojson.Properties
}

// Kind returns the geometry kind of the feature.
func (f Feature) Kind() GeometryKind {
	return KindOf(f.Geometry)
}

// GeoJSON converts the feature to its orb representation. The geometry is
// shared, not copied.
func (f Feature) GeoJSON() *geojson.Feature {
	out := geojson.NewFeature(f.Geometry)
	out.ID = f.ID
	if f.Properties != nil {
		out.Properties = f.Properties.Clone()
	}
	return out
}

// FeatureFromGeoJSON builds a layer feature from a decoded GeoJSON feature.
func FeatureFromGeoJSON(layer string, f *geojson.Feature) Feature {
	props := f.Properties
	if props == nil {
		props = geojson.Properties{}
	}
	return Feature{
		Layer:      layer,
		Geometry:   f.Geometry,
		Properties: props,
	}
}
