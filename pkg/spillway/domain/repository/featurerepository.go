package repository

import (
	"context"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulmach/orb"
)

// FeatureQuery selects features of one layer. Geometry is given in the layer
// SRID; a nil Geometry selects every feature. Limit 0 means no limit.
type FeatureQuery struct {
	Lookup   entities.Lookup
	Geometry orb.Geometry
	Limit    int
	Offset   int
}

type FeatureRepository interface {
	CreateLayer(ctx context.Context, layer entities.Layer) error
	Layer(ctx context.Context, name string) (entities.Layer, error)
	Layers(ctx context.Context) ([]entities.Layer, error)

	// AddFeatures stores features in the layer SRID and returns their ids.
	AddFeatures(ctx context.Context, layer string, features []entities.Feature) ([]int64, error)
	Feature(ctx context.Context, layer string, id int64) (entities.Feature, error)
	// Features returns one page of matching features, ordered by id, and the
	// number of all matches.
	Features(ctx context.Context, layer string, q FeatureQuery) ([]entities.Feature, int, error)
	// Extent is the envelope of every feature of the layer. ok is false for
	// an empty layer.
	Extent(ctx context.Context, layer string) (extent entities.Extent, ok bool, err error)

	// Import reads a GeoJSON or OSM file into the layer and returns the
	// number of imported features.
	Import(ctx context.Context, layer string, path string) (int, error)
}
