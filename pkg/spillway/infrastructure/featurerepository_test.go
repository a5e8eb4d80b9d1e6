package infrastructure_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulkoehlerdev/spillway/pkg/libraries/sqlitedriver"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/infrastructure"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

// forEachRepository runs fn against every feature store available on the
// host. The SpatiaLite store is skipped when the extension is missing.
func forEachRepository(t *testing.T, fn func(t *testing.T, repo repository.FeatureRepository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, infrastructure.NewMemoryFeatureRepository())
	})
	t.Run("spatialite", func(t *testing.T) {
		if !sqlitedriver.SpatiaLiteAvailable() {
			t.Skip("spatialite extension not installed")
		}
		repo, err := infrastructure.NewSqliteFeatureRepository(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		fn(t, repo)
	})
}

func seedLayer(t *testing.T, repo repository.FeatureRepository) []int64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "parcels", SRID: 4326, Kind: entities.KindPolygon}))

	ids, err := repo.AddFeatures(ctx, "parcels", []entities.Feature{
		{Geometry: square(0, 0, 10, 10), Properties: geojson.Properties{"name": "big"}},
		{Geometry: square(2, 2, 4, 4), Properties: geojson.Properties{"name": "small"}},
		{Geometry: square(20, 20, 30, 30), Properties: geojson.Properties{"name": "far"}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	return ids
}

func names(features []entities.Feature) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		out = append(out, f.Properties["name"].(string))
	}
	return out
}

func TestFeatureRepository_Layers(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repository.FeatureRepository) {
		ctx := context.Background()
		require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "roads", SRID: 3857, Kind: entities.KindLineString}))
		require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "places", SRID: 4326}))

		err := repo.CreateLayer(ctx, entities.Layer{Name: "roads", SRID: 4326})
		assert.ErrorIs(t, err, entities.ErrInvalid)

		layers, err := repo.Layers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []entities.Layer{
			{Name: "places", SRID: 4326, Kind: entities.KindUnknown},
			{Name: "roads", SRID: 3857, Kind: entities.KindLineString},
		}, layers)

		_, err = repo.Layer(ctx, "missing")
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})
}

func TestFeatureRepository_Feature(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repository.FeatureRepository) {
		ctx := context.Background()
		ids := seedLayer(t, repo)

		f, err := repo.Feature(ctx, "parcels", ids[1])
		require.NoError(t, err)
		assert.Equal(t, ids[1], f.ID)
		assert.Equal(t, "parcels", f.Layer)
		assert.Equal(t, "small", f.Properties["name"])
		assert.Equal(t, orb.Polygon(square(2, 2, 4, 4)), f.Geometry)

		_, err = repo.Feature(ctx, "parcels", ids[2]+100)
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})
}

func TestFeatureRepository_Features(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repository.FeatureRepository) {
		ctx := context.Background()
		seedLayer(t, repo)

		tests := []struct {
			name  string
			query repository.FeatureQuery
			want  []string
		}{
			{"all", repository.FeatureQuery{}, []string{"big", "small", "far"}},
			{"intersects", repository.FeatureQuery{Lookup: entities.LookupIntersects, Geometry: orb.Point{3, 3}}, []string{"big", "small"}},
			{"bbox", repository.FeatureQuery{Lookup: entities.LookupBBox, Geometry: square(9, 9, 21, 21)}, []string{"big", "far"}},
			{"contains", repository.FeatureQuery{Lookup: entities.LookupContains, Geometry: square(5, 5, 6, 6)}, []string{"big"}},
			{"within", repository.FeatureQuery{Lookup: entities.LookupWithin, Geometry: square(1, 1, 5, 5)}, []string{"small"}},
			{"disjoint", repository.FeatureQuery{Lookup: entities.LookupIntersects, Geometry: orb.Point{15, 15}}, []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				features, count, err := repo.Features(ctx, "parcels", tt.query)
				require.NoError(t, err)
				assert.Equal(t, len(tt.want), count)
				assert.Equal(t, tt.want, names(features))
			})
		}
	})
}

func TestFeatureRepository_FeaturesPaging(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repository.FeatureRepository) {
		ctx := context.Background()
		seedLayer(t, repo)

		features, count, err := repo.Features(ctx, "parcels", repository.FeatureQuery{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Equal(t, []string{"small", "far"}, names(features))

		features, count, err = repo.Features(ctx, "parcels", repository.FeatureQuery{Limit: 2, Offset: 5})
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Empty(t, features)

		_, _, err = repo.Features(ctx, "missing", repository.FeatureQuery{})
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})
}

func TestFeatureRepository_Extent(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repository.FeatureRepository) {
		ctx := context.Background()
		require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "empty", SRID: 4326}))

		_, ok, err := repo.Extent(ctx, "empty")
		require.NoError(t, err)
		assert.False(t, ok)

		seedLayer(t, repo)
		extent, ok, err := repo.Extent(ctx, "parcels")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, entities.Extent{Bound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{30, 30}}, SRID: 4326}, extent)
	})
}

const importGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":{"type":"Point","coordinates":[14.42,50.08]},"properties":{"name":"Prague"}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[16.61,49.19]},"properties":{"name":"Brno"}},
{"type":"Feature","geometry":{"type":"LineString","coordinates":[[14.42,50.08],[16.61,49.19]]},"properties":{"name":"D1"}}
]}`

const importOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="50.080" lon="14.420" version="1"/>
  <node id="2" lat="50.081" lon="14.421" version="1"/>
  <node id="3" lat="50.082" lon="14.423" version="1"/>
  <node id="4" lat="50.087" lon="14.421" version="1">
    <tag k="amenity" v="cafe"/>
    <tag k="name" v="Kavarna"/>
  </node>
  <way id="10" version="1">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="residential"/>
  </way>
</osm>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFeatureRepository_ImportGeoJSON(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repository.FeatureRepository) {
		ctx := context.Background()
		require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "cities", SRID: 3857, Kind: entities.KindPoint}))

		n, err := repo.Import(ctx, "cities", writeFile(t, "cities.geojson", importGeoJSON))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		features, _, err := repo.Features(ctx, "cities", repository.FeatureQuery{})
		require.NoError(t, err)
		require.Len(t, features, 2)
		assert.Equal(t, []string{"Prague", "Brno"}, names(features))

		p := features[0].Geometry.(orb.Point)
		assert.InDelta(t, 1605200, p[0], 1000)
		assert.InDelta(t, 6460000, p[1], 10000)
	})
}

func TestFeatureRepository_ImportOSM(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repository.FeatureRepository) {
		ctx := context.Background()
		require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "osm", SRID: 4326}))

		n, err := repo.Import(ctx, "osm", writeFile(t, "prague.osm", importOSM))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		features, _, err := repo.Features(ctx, "osm", repository.FeatureQuery{})
		require.NoError(t, err)
		kinds := map[entities.GeometryKind]int{}
		for _, f := range features {
			kinds[f.Kind()]++
		}
		assert.Equal(t, map[entities.GeometryKind]int{entities.KindPoint: 1, entities.KindLineString: 1}, kinds)
	})
}

func TestFeatureRepository_ImportRejectsUnknownFiles(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repository.FeatureRepository) {
		ctx := context.Background()
		require.NoError(t, repo.CreateLayer(ctx, entities.Layer{Name: "x", SRID: 4326}))

		_, err := repo.Import(ctx, "x", writeFile(t, "data.csv", "a,b\n"))
		assert.ErrorIs(t, err, entities.ErrInvalid)

		_, err = repo.Import(ctx, "missing", writeFile(t, "data.geojson", importGeoJSON))
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})
}
