package service_test

import (
	"bytes"
	"context"
	"image/png"
	"log/slog"
	"strings"
	"testing"

	"github.com/paulkoehlerdev/spillway/pkg/libraries/logger"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/render"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/service"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/infrastructure"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pragueTriangle = orb.Polygon{{{14.14, 50.21}, {14.89, 50.20}, {14.39, 49.76}, {14.14, 50.21}}}

// pragueTile covers the south east corner of the triangle.
var pragueTile = entities.TileAddress{Z: 10, X: 553, Y: 347}

func nopLogger() *slog.Logger {
	nop := zerolog.Nop()
	return logger.NewSlog(&nop)
}

func newPragueRepository(t *testing.T) *infrastructure.MemoryFeatureRepository {
	t.Helper()
	ctx := context.Background()
	repo := infrastructure.NewMemoryFeatureRepository()
	require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "prague", SRID: 4326, Kind: entities.KindPolygon}))
	_, err := repo.AddFeatures(ctx, "prague", []entities.Feature{
		{Geometry: pragueTriangle, Properties: geojson.Properties{"name": "Prague"}},
	})
	require.NoError(t, err)
	return repo
}

func TestMapTilesService_TileFeaturesClipped(t *testing.T) {
	tiles := service.NewMapTilesService(newPragueRepository(t), nopLogger())

	features, err := tiles.TileFeatures(context.Background(), "prague", pragueTile, true, 4326)
	require.NoError(t, err)
	require.Len(t, features, 1)

	poly, ok := features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly[0], 5)
	assert.Equal(t, "Prague", features[0].Properties["name"])
}

func TestMapTilesService_TileFeaturesUnclipped(t *testing.T) {
	tiles := service.NewMapTilesService(newPragueRepository(t), nopLogger())

	features, err := tiles.TileFeatures(context.Background(), "prague", pragueTile, false, 4326)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, orb.Geometry(pragueTriangle), features[0].Geometry)
}

func TestMapTilesService_TileFeaturesOutsideGrid(t *testing.T) {
	tiles := service.NewMapTilesService(newPragueRepository(t), nopLogger())

	features, err := tiles.TileFeatures(context.Background(), "prague", entities.TileAddress{Z: 2, X: 9, Y: 0}, true, 4326)
	require.NoError(t, err)
	assert.Empty(t, features)

	_, err = tiles.TileFeatures(context.Background(), "missing", pragueTile, true, 4326)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestMapTilesService_GetMapTileGeoJSON(t *testing.T) {
	tiles := service.NewMapTilesService(newPragueRepository(t), nopLogger())

	tile, err := tiles.GetMapTile(context.Background(), service.TileRequest{
		Layer: "prague", Tile: pragueTile, Format: entities.FormatGeoJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tile.Features)

	fc, err := geojson.UnmarshalFeatureCollection(tile.Data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, orb.Geometry(pragueTriangle), fc.Features[0].Geometry)
}

func TestMapTilesService_GetMapTilePBF(t *testing.T) {
	tiles := service.NewMapTilesService(newPragueRepository(t), nopLogger())

	for _, gzipped := range []bool{false, true} {
		tile, err := tiles.GetMapTile(context.Background(), service.TileRequest{
			Layer: "prague", Tile: pragueTile, Clip: true, Format: entities.FormatPBF, Gzip: gzipped,
		})
		require.NoError(t, err)

		var layers mvt.Layers
		if gzipped {
			layers, err = mvt.UnmarshalGzipped(tile.Data)
		} else {
			layers, err = mvt.Unmarshal(tile.Data)
		}
		require.NoError(t, err)
		require.Len(t, layers, 1)
		assert.Equal(t, "prague", layers[0].Name)
		assert.Equal(t, uint32(4096), layers[0].Extent)
		require.Len(t, layers[0].Features, 1)

		b := layers[0].Features[0].Geometry.Bound()
		assert.GreaterOrEqual(t, b.Min[0], -64.0)
		assert.LessOrEqual(t, b.Max[0], 4096.0+64)
	}
}

func TestMapTilesService_GetMapTileUnsupportedFormat(t *testing.T) {
	tiles := service.NewMapTilesService(newPragueRepository(t), nopLogger())

	_, err := tiles.GetMapTile(context.Background(), service.TileRequest{
		Layer: "prague", Tile: pragueTile, Format: entities.FormatKML,
	})
	assert.ErrorIs(t, err, entities.ErrUnsupportedFormat)
}

func TestMapStyleService_GetMapStyle(t *testing.T) {
	style, err := service.NewMapStyleService("http://localhost:8080/", "#ff0000", "#000000", newPragueRepository(t)).
		GetMapStyle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, style.Version)
	source, ok := style.Sources["prague"]
	require.True(t, ok)
	assert.Equal(t, []string{"http://localhost:8080/vectiles/prague/{z}/{x}/{y}.pbf"}, source.TilesURLs)
	require.Len(t, source.Bounds, 4)
	assert.InDeltaSlice(t, []float64{14.14, 49.76, 14.89, 50.21}, source.Bounds, 1e-9)

	require.Len(t, style.Layers, 1)
	assert.Equal(t, "fill", style.Layers[0].Type)
	require.NotNil(t, style.Layers[0].Paint.FillPaint)
	assert.Equal(t, "#ff0000", *style.Layers[0].Paint.FillPaint.FillColor)
}

func TestFeatureService_CreateLayerValidation(t *testing.T) {
	features := service.NewFeatureService(infrastructure.NewMemoryFeatureRepository(), nopLogger())

	err := features.CreateLayer(context.Background(), entities.Layer{Name: "1-bad name", SRID: -4})
	var verr *entities.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "srid")
	assert.ErrorIs(t, err, entities.ErrInvalid)

	require.NoError(t, features.CreateLayer(context.Background(), entities.Layer{Name: "ok"}))
	layers, err := features.Layers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []entities.Layer{{Name: "ok", SRID: 4326}}, layers)
}

func TestFeatureService_AddFeaturesReprojects(t *testing.T) {
	ctx := context.Background()
	repo := infrastructure.NewMemoryFeatureRepository()
	require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "cities", SRID: 3857, Kind: entities.KindPoint}))
	features := service.NewFeatureService(repo, nopLogger())

	ids, err := features.AddFeatures(ctx, "cities", []*geojson.Feature{
		geojson.NewFeature(orb.Point{180, 0}),
	}, 4326)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	stored, err := repo.Feature(ctx, "cities", ids[0])
	require.NoError(t, err)
	assert.InDelta(t, 20037508.34, stored.Geometry.(orb.Point)[0], 0.01)

	f, srid, err := features.GetFeature(ctx, "cities", ids[0], 0, 4326)
	require.NoError(t, err)
	assert.Equal(t, 4326, srid)
	assert.InDelta(t, 180, f.Geometry.(orb.Point)[0], 1e-9)
}

func TestFeatureService_AddFeaturesRejectsInvalid(t *testing.T) {
	features := service.NewFeatureService(newPragueRepository(t), nopLogger())

	_, err := features.AddFeatures(context.Background(), "prague", []*geojson.Feature{
		geojson.NewFeature(orb.Point{1, 1}),
		geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 1}, {0, 0}}}),
	}, 4326)
	var verr *entities.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "features.0.geometry")
	assert.Contains(t, verr.Fields, "features.1.geometry")

	_, err = features.AddFeatures(context.Background(), "missing", nil, 4326)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestFeatureService_ListFeatures(t *testing.T) {
	ctx := context.Background()
	repo := newPragueRepository(t)
	features := service.NewFeatureService(repo, nopLogger())
	_, err := features.AddFeatures(ctx, "prague", []*geojson.Feature{
		geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}),
		geojson.NewFeature(orb.Polygon{{{2, 2}, {3, 2}, {3, 3}, {2, 3}, {2, 2}}}),
	}, 4326)
	require.NoError(t, err)

	page, err := features.ListFeatures(ctx, "prague", service.FeatureListQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	assert.Len(t, page.Features, 1)
	assert.False(t, page.HasNext())
	assert.True(t, page.HasPrevious())

	page, err = features.ListFeatures(ctx, "prague", service.FeatureListQuery{Geometry: orb.Point{14.4, 50.0}})
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)
	assert.Equal(t, "Prague", page.Features[0].Properties["name"])

	_, err = features.ListFeatures(ctx, "prague", service.FeatureListQuery{PageSize: service.MaxPageSize + 1})
	assert.ErrorIs(t, err, entities.ErrInvalid)
}

func TestFeatureService_ListFeaturesSimplifiesInOutputUnits(t *testing.T) {
	ctx := context.Background()
	repo := infrastructure.NewMemoryFeatureRepository()
	require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "lines", SRID: 4326}))
	features := service.NewFeatureService(repo, nopLogger())
	_, err := features.AddFeatures(ctx, "lines", []*geojson.Feature{
		geojson.NewFeature(orb.LineString{{0, 0}, {0.5, 0.0001}, {1, 0}}),
	}, 4326)
	require.NoError(t, err)

	page, err := features.ListFeatures(ctx, "lines", service.FeatureListQuery{Simplify: 100, SRID: 3857})
	require.NoError(t, err)
	require.Len(t, page.Features, 1)
	assert.Equal(t, 3857, page.SRID)
	assert.Len(t, page.Features[0].Geometry.(orb.LineString), 2)
}

func TestFeatureService_Encode(t *testing.T) {
	features := service.NewFeatureService(infrastructure.NewMemoryFeatureRepository(), nopLogger())
	fs := []entities.Feature{{ID: 1, Geometry: pragueTriangle, Properties: geojson.Properties{"name": "Prague"}}}

	var kml bytes.Buffer
	require.NoError(t, features.Encode(&kml, "prague", fs, 4326, entities.OutputFormat{Format: entities.FormatKML}))
	assert.Contains(t, kml.String(), "<name>Prague</name>")
	assert.Contains(t, kml.String(), "14.14,50.21")

	var svg bytes.Buffer
	require.NoError(t, features.Encode(&svg, "prague", fs, 4326, entities.OutputFormat{Format: entities.FormatSVG}))
	assert.True(t, strings.HasPrefix(svg.String(), "<svg"))
	assert.Contains(t, svg.String(), `id="1"`)

	err := features.Encode(&svg, "prague", fs, 4326, entities.OutputFormat{Format: entities.FormatPNG})
	assert.ErrorIs(t, err, entities.ErrUnsupportedFormat)
}

func gridRaster() entities.Raster {
	data := make([]float64, 25)
	for i := range data {
		data[i] = float64(i)
	}
	return entities.Raster{
		Name:   "grid",
		SRID:   4326,
		Affine: entities.Affine{-120, 2, 0, 38, 0, -2},
		Width:  5,
		Height: 5,
		Data:   data,
	}
}

func newRasterService(t *testing.T) (service.RasterService, *infrastructure.SqliteRasterRepository) {
	t.Helper()
	repo, err := infrastructure.NewSqliteRasterRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return service.NewRasterService(repo, nopLogger()), repo
}

func TestRasterService_AddRasterValidation(t *testing.T) {
	rasters, _ := newRasterService(t)

	r := gridRaster()
	r.Data = r.Data[:3]
	r.Affine = entities.Affine{}
	_, err := rasters.AddRaster(context.Background(), r)
	var verr *entities.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "data")
	assert.Contains(t, verr.Fields, "affine")
}

func TestRasterService_Queries(t *testing.T) {
	ctx := context.Background()
	rasters, _ := newRasterService(t)

	id, err := rasters.AddRaster(ctx, gridRaster())
	require.NoError(t, err)

	v, err := rasters.Summarize(ctx, id, orb.Point{-115, 33}, 4326)
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	window, err := rasters.Window(ctx, id, orb.Bound{Min: orb.Point{-117.5, 30.5}, Max: orb.Point{-112.5, 35.5}}, 4326)
	require.NoError(t, err)
	assert.Equal(t, 3, window.Width)
	assert.Equal(t, []float64{6, 7, 8, 11, 12, 13, 16, 17, 18}, window.Data)

	breaks, err := rasters.Classes(ctx, id, service.ClassesLinear, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 6, 12, 18, 24}, breaks)

	_, err = rasters.Classes(ctx, id, "jenks", nil, 0)
	assert.ErrorIs(t, err, entities.ErrInvalid)

	_, err = rasters.Summarize(ctx, id+1, orb.Point{-115, 33}, 4326)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestRasterService_Periods(t *testing.T) {
	ctx := context.Background()
	rasters, _ := newRasterService(t)
	for i := 0; i < 4; i++ {
		r := gridRaster()
		for j := range r.Data {
			r.Data[j] += float64(i)
		}
		r.Event = r.Event.AddDate(2020, 0, i)
		_, err := rasters.AddRaster(ctx, r)
		require.NoError(t, err)
	}

	periods, err := rasters.Periods(ctx, orb.Point{-115, 33}, 4326, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{12.5}, {14.5}}, periods)

	_, err = rasters.Periods(ctx, nil, 0, 5)
	assert.ErrorIs(t, err, entities.ErrInvalid)
}

func newRenderService(t *testing.T) (service.RenderService, int64) {
	t.Helper()
	features := newPragueRepository(t)
	rasters, repo := newRasterService(t)
	id, err := rasters.AddRaster(context.Background(), gridRaster())
	require.NoError(t, err)

	renderer, err := render.New(render.Config{})
	require.NoError(t, err)
	tiles := service.NewMapTilesService(features, nopLogger())
	return service.NewRenderService(tiles, features, repo, renderer), id
}

func TestRenderService_RasterTile(t *testing.T) {
	renders, id := newRenderService(t)

	data, err := renders.RenderRasterTile(context.Background(), id, service.RenderRequest{
		Tile: entities.TileAddress{Z: 11, X: 342, Y: 790}, Format: entities.FormatPNG,
	})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())

	_, err = renders.RenderRasterTile(context.Background(), id+1, service.RenderRequest{
		Tile: entities.TileAddress{Z: 11, X: 342, Y: 790}, Format: entities.FormatPNG,
	})
	assert.ErrorIs(t, err, entities.ErrNotFound)

	_, err = renders.RenderRasterTile(context.Background(), id, service.RenderRequest{
		Tile: entities.TileAddress{Z: 4, X: 7, Y: 8}, Format: entities.FormatPNG,
	})
	assert.ErrorIs(t, err, entities.ErrOutsideExtent)
}

func TestRenderService_VectorTile(t *testing.T) {
	renders, _ := newRenderService(t)

	data, err := renders.RenderVectorTile(context.Background(), "prague", service.RenderRequest{
		Tile: pragueTile, Size: 128, Format: entities.FormatPNG,
	})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	_, err = renders.RenderVectorTile(context.Background(), "prague", service.RenderRequest{
		Tile: entities.TileAddress{Z: 4, X: 7, Y: 8}, Format: entities.FormatPNG,
	})
	assert.ErrorIs(t, err, entities.ErrOutsideExtent)

	_, err = renders.RenderVectorTile(context.Background(), "prague", service.RenderRequest{
		Tile: pragueTile, Format: entities.FormatTIFF,
	})
	assert.ErrorIs(t, err, entities.ErrUnsupportedFormat)
}

func TestRasterService_Encode(t *testing.T) {
	rasters, _ := newRasterService(t)

	var buf bytes.Buffer
	require.NoError(t, rasters.Encode(&buf, gridRaster(), entities.OutputFormat{Format: entities.FormatPNG}))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())

	buf.Reset()
	require.NoError(t, rasters.Encode(&buf, gridRaster(), entities.OutputFormat{Format: entities.FormatTIFF, Zipped: true}))
	assert.Equal(t, "PK", buf.String()[:2])
}
