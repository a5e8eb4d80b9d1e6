package service

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/geometry"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/tiling"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"log/slog"
)

const mvtVersion = 2

// TileRequest asks for one vector tile of a layer.
type TileRequest struct {
	Layer  string
	Tile   entities.TileAddress
	Clip   bool
	Format entities.Format
	Gzip   bool
}

// Tile is an encoded tile and the number of features in it.
type Tile struct {
	Data     []byte
	Features int
}

type MapTilesService interface {
	// TileFeatures selects the features of layer intersecting tile, clips them
	// to the tile when clip is set, simplifies them for the tile zoom and
	// returns them in srid.
	TileFeatures(ctx context.Context, layer string, tile entities.TileAddress, clip bool, srid int) ([]entities.Feature, error)
	// GetMapTile encodes a vector tile as GeoJSON or PBF.
	GetMapTile(ctx context.Context, req TileRequest) (Tile, error)
}

type mapTilesService struct {
	dataRepository repository.FeatureRepository
	log            *slog.Logger
}

func NewMapTilesService(dataRepository repository.FeatureRepository, log *slog.Logger) MapTilesService {
	return &mapTilesService{
		dataRepository: dataRepository,
		log:            log,
	}
}

func (m mapTilesService) TileFeatures(ctx context.Context, layerName string, tile entities.TileAddress, clip bool, srid int) ([]entities.Feature, error) {
	layer, err := m.dataRepository.Layer(ctx, layerName)
	if err != nil {
		return nil, err
	}
	if !tile.InRange() {
		m.log.DebugContext(ctx, "tile outside grid", "tile", tile.String())
		return []entities.Feature{}, nil
	}

	bbox, err := srs.TransformExtent(tiling.Resolve(tile), layer.SRID)
	if err != nil {
		return nil, fmt.Errorf("failed to transform tile bbox: %w", err)
	}
	tolerance, err := tiling.TransformTolerance(tiling.Tolerance(tile.Z), srs.WebMercator, layer.SRID)
	if err != nil {
		return nil, err
	}

	candidates, _, err := m.dataRepository.Features(ctx, layerName, repository.FeatureQuery{
		Lookup:   entities.LookupIntersects,
		Geometry: bbox.Bound.ToPolygon(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select features: %w", err)
	}

	padded := bbox.Bound.Pad(tolerance)
	out := make([]entities.Feature, 0, len(candidates))
	for _, f := range candidates {
		g := f.Geometry
		if clip {
			if g = geometry.Clip(g, padded); g == nil {
				continue
			}
		}
		g = geometry.SimplifyPreserveTopology(g, tolerance)

		if g, err = srs.TransformGeometry(g, layer.SRID, srid); err != nil {
			return nil, fmt.Errorf("failed to transform feature %d: %w", f.ID, err)
		}
		f.Geometry = g
		out = append(out, f)
	}

	m.log.DebugContext(ctx, "tile features selected",
		"tile", tile.String(), "candidates", len(candidates), "features", len(out), "tolerance", tolerance)
	return out, nil
}

func (m mapTilesService) GetMapTile(ctx context.Context, req TileRequest) (Tile, error) {
	switch req.Format {
	case entities.FormatGeoJSON, entities.FormatJSON:
		return m.geoJSONTile(ctx, req)
	case entities.FormatPBF:
		return m.vectorTile(ctx, req)
	default:
		return Tile{}, fmt.Errorf("%w: vector tiles cannot be encoded as %s", entities.ErrUnsupportedFormat, req.Format)
	}
}

func (m mapTilesService) geoJSONTile(ctx context.Context, req TileRequest) (Tile, error) {
	features, err := m.TileFeatures(ctx, req.Layer, req.Tile, req.Clip, srs.WGS84)
	if err != nil {
		return Tile{}, err
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f.GeoJSON())
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return Tile{}, fmt.Errorf("marshal feature collection failed: %w", err)
	}
	return Tile{Data: data, Features: len(features)}, nil
}

func (m mapTilesService) vectorTile(ctx context.Context, req TileRequest) (Tile, error) {
	features, err := m.TileFeatures(ctx, req.Layer, req.Tile, req.Clip, srs.WebMercator)
	if err != nil {
		return Tile{}, err
	}

	layer := &mvt.Layer{
		Name:    req.Layer,
		Version: mvtVersion,
		Extent:  tiling.DefaultExtent,
	}
	if len(features) > 0 {
		bound, err := tiling.ResolveMercator(req.Tile)
		if err != nil {
			return Tile{}, err
		}
		transform := tiling.NewTileTransform(bound.Bound, tiling.DefaultExtent)
		for _, f := range features {
			gf := f.GeoJSON()
			gf.Geometry = transform.Geometry(f.Geometry)
			layer.Features = append(layer.Features, gf)
		}
	}

	var data []byte
	if req.Gzip {
		data, err = mvt.MarshalGzipped(mvt.Layers{layer})
	} else {
		data, err = mvt.Marshal(mvt.Layers{layer})
	}
	if err != nil {
		return Tile{}, fmt.Errorf("marshal layers failed: %w", err)
	}
	return Tile{Data: data, Features: len(features)}, nil
}
