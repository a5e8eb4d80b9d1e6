package application

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/metrics"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/tilecache"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/render"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/service"
	"github.com/paulmach/orb/geojson"
	"io"
	"log/slog"
)

const (
	tileKindVector   = "vector"
	tileKindRendered = "rendered"
	tileKindRaster   = "raster"
)

// TileCache stores encoded tiles by key.
type TileCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte) error
	PurgeLayer(ctx context.Context, layer string) error
}

// Tile is an encoded tile ready to be written.
type Tile struct {
	Data        []byte
	ContentType string
	Gzipped     bool
}

// RasterResult is a raster detail: the raster itself, a window of it, or a
// value summarized over a geometry.
type RasterResult struct {
	Raster entities.Raster
	Value  *float64
}

type Application interface {
	GetMapStyle(ctx context.Context) ([]byte, error)
	Ramps() []string

	Layers(ctx context.Context) ([]entities.Layer, error)
	CreateLayer(ctx context.Context, layer entities.Layer) (entities.Layer, error)
	ListFeatures(ctx context.Context, p FeatureListParams) (service.FeaturePage, error)
	GetFeature(ctx context.Context, p FeatureParams) (entities.Feature, int, error)
	AddFeatures(ctx context.Context, layer string, features []*geojson.Feature, srid int) ([]int64, error)
	ImportFeatures(ctx context.Context, layer string, path string) (int, error)
	EncodeFeatures(w io.Writer, name string, features []entities.Feature, srid int, format entities.OutputFormat) error

	GetVectorTile(ctx context.Context, p TileParams) (Tile, error)
	GetMapTile(ctx context.Context, id int64, p TileParams) (Tile, error)

	AddRaster(ctx context.Context, r entities.Raster) (int64, error)
	Rasters(ctx context.Context) ([]entities.Raster, error)
	Periods(ctx context.Context, p PeriodsParams) ([][]float64, error)
	GetRaster(ctx context.Context, p RasterParams) (RasterResult, error)
	RasterClasses(ctx context.Context, id int64, p ClassesParams) ([]float64, error)
	EncodeRaster(w io.Writer, r entities.Raster, format entities.OutputFormat) error
}

type application struct {
	styleService   service.MapStyleService
	tilesService   service.MapTilesService
	featureService service.FeatureService
	rasterService  service.RasterService
	renderService  service.RenderService
	renderer       *render.Renderer
	cache          TileCache
	log            *slog.Logger
}

func New(
	styleService service.MapStyleService,
	tilesService service.MapTilesService,
	featureService service.FeatureService,
	rasterService service.RasterService,
	renderService service.RenderService,
	renderer *render.Renderer,
	cache TileCache,
	log *slog.Logger,
) Application {
	return &application{
		styleService:   styleService,
		tilesService:   tilesService,
		featureService: featureService,
		rasterService:  rasterService,
		renderService:  renderService,
		renderer:       renderer,
		cache:          cache,
		log:            log,
	}
}

func (app *application) GetMapStyle(ctx context.Context) ([]byte, error) {
	style, err := app.styleService.GetMapStyle(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(style)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal map style: %w", err)
	}
	return data, nil
}

func (app *application) Ramps() []string {
	return app.renderer.Ramps().Names()
}

func (app *application) Layers(ctx context.Context) ([]entities.Layer, error) {
	return app.featureService.Layers(ctx)
}

func (app *application) CreateLayer(ctx context.Context, layer entities.Layer) (entities.Layer, error) {
	if err := app.featureService.CreateLayer(ctx, layer); err != nil {
		return entities.Layer{}, err
	}
	return app.featureService.Layer(ctx, layer.Name)
}

func (app *application) ListFeatures(ctx context.Context, p FeatureListParams) (service.FeaturePage, error) {
	return app.featureService.ListFeatures(ctx, p.Layer, service.FeatureListQuery{
		Lookup:       p.Lookup,
		Geometry:     p.Geometry,
		GeometrySRID: p.SRID,
		Page:         p.Page,
		PageSize:     p.PageSize,
		Simplify:     p.Simplify,
		SRID:         p.SRID,
	})
}

func (app *application) GetFeature(ctx context.Context, p FeatureParams) (entities.Feature, int, error) {
	return app.featureService.GetFeature(ctx, p.Layer, p.ID, p.Simplify, p.SRID)
}

func (app *application) AddFeatures(ctx context.Context, layer string, features []*geojson.Feature, srid int) ([]int64, error) {
	ids, err := app.featureService.AddFeatures(ctx, layer, features, srid)
	if err != nil {
		return nil, err
	}
	metrics.AddFeaturesImported(layer, len(ids))
	app.purge(ctx, layer)
	return ids, nil
}

func (app *application) ImportFeatures(ctx context.Context, layer string, path string) (int, error) {
	n, err := app.featureService.Import(ctx, layer, path)
	if err != nil {
		return 0, err
	}
	metrics.AddFeaturesImported(layer, n)
	app.purge(ctx, layer)
	return n, nil
}

func (app *application) EncodeFeatures(w io.Writer, name string, features []entities.Feature, srid int, format entities.OutputFormat) error {
	return app.featureService.Encode(w, name, features, srid, format)
}

// purge drops stale tiles of a layer. Cache errors are logged, not returned.
func (app *application) purge(ctx context.Context, layer string) {
	if err := app.cache.PurgeLayer(ctx, layer); err != nil {
		app.log.WarnContext(ctx, "failed to purge tile cache", "layer", layer, "error", err)
	}
}

func (app *application) GetVectorTile(ctx context.Context, p TileParams) (Tile, error) {
	format := entities.OutputFormat{Format: p.Format}
	gzipped := p.Gzip && p.Format == entities.FormatPBF
	key := tilecache.Key(p.Layer, p.Z, p.X, p.Y, cacheFormat(p.Format, gzipped), p.Query)

	return app.cached(ctx, key, format.ContentType(), gzipped, func() ([]byte, error) {
		switch p.Format {
		case entities.FormatPNG, entities.FormatJPEG:
			data, err := app.renderService.RenderVectorTile(ctx, p.Layer, renderRequest(p))
			if err != nil {
				return nil, err
			}
			metrics.ObserveTile(tileKindRendered, string(p.Format), -1)
			return data, nil
		default:
			tile, err := app.tilesService.GetMapTile(ctx, service.TileRequest{
				Layer:  p.Layer,
				Tile:   p.Tile(),
				Clip:   p.Clip,
				Format: p.Format,
				Gzip:   gzipped,
			})
			if err != nil {
				return nil, err
			}
			metrics.ObserveTile(tileKindVector, string(p.Format), tile.Features)
			return tile.Data, nil
		}
	})
}

func (app *application) GetMapTile(ctx context.Context, id int64, p TileParams) (Tile, error) {
	format := entities.OutputFormat{Format: p.Format}
	key := tilecache.RasterKey(id, p.Z, p.X, p.Y, string(p.Format), p.Query)

	return app.cached(ctx, key, format.ContentType(), false, func() ([]byte, error) {
		data, err := app.renderService.RenderRasterTile(ctx, id, renderRequest(p))
		if err != nil {
			return nil, err
		}
		metrics.ObserveTile(tileKindRaster, string(p.Format), -1)
		return data, nil
	})
}

func (app *application) cached(ctx context.Context, key, contentType string, gzipped bool, build func() ([]byte, error)) (Tile, error) {
	if data, ok := app.cache.Get(ctx, key); ok {
		return Tile{Data: data, ContentType: contentType, Gzipped: gzipped}, nil
	}

	data, err := build()
	if err != nil {
		return Tile{}, err
	}
	if err := app.cache.Set(ctx, key, data); err != nil {
		app.log.WarnContext(ctx, "failed to cache tile", "key", key, "error", err)
	}
	return Tile{Data: data, ContentType: contentType, Gzipped: gzipped}, nil
}

func cacheFormat(f entities.Format, gzipped bool) string {
	if gzipped {
		return string(f) + ".gz"
	}
	return string(f)
}

func renderRequest(p TileParams) service.RenderRequest {
	return service.RenderRequest{
		Tile:   p.Tile(),
		Size:   p.Size,
		Style:  p.Style,
		Limits: p.Limits,
		Format: p.Format,
	}
}

func (app *application) AddRaster(ctx context.Context, r entities.Raster) (int64, error) {
	return app.rasterService.AddRaster(ctx, r)
}

func (app *application) Rasters(ctx context.Context) ([]entities.Raster, error) {
	return app.rasterService.ListRasters(ctx)
}

func (app *application) Periods(ctx context.Context, p PeriodsParams) ([][]float64, error) {
	return app.rasterService.Periods(ctx, p.Geometry, p.SRID, p.Periods)
}

func (app *application) GetRaster(ctx context.Context, p RasterParams) (RasterResult, error) {
	switch {
	case p.Geometry != nil:
		r, err := app.rasterService.GetRaster(ctx, p.ID)
		if err != nil {
			return RasterResult{}, err
		}
		v, err := app.rasterService.Summarize(ctx, p.ID, p.Geometry, p.SRID)
		if err != nil {
			return RasterResult{}, err
		}
		return RasterResult{Raster: r, Value: &v}, nil
	case p.BBox != nil:
		r, err := app.rasterService.Window(ctx, p.ID, *p.BBox, p.SRID)
		if err != nil {
			return RasterResult{}, err
		}
		return RasterResult{Raster: r}, nil
	default:
		r, err := app.rasterService.GetRaster(ctx, p.ID)
		if err != nil {
			return RasterResult{}, err
		}
		return RasterResult{Raster: r}, nil
	}
}

func (app *application) RasterClasses(ctx context.Context, id int64, p ClassesParams) ([]float64, error) {
	return app.rasterService.Classes(ctx, id, p.Method, p.Limits, p.K)
}

func (app *application) EncodeRaster(w io.Writer, r entities.Raster, format entities.OutputFormat) error {
	return app.rasterService.Encode(w, r, format)
}
