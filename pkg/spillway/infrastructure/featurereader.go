package infrastructure

import (
	"compress/bzip2"
	"context"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/geometry"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmgeojson"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"io"
	"os"
	"runtime"
	"strings"
)

// readFeatureFile decodes a GeoJSON FeatureCollection or an OSM dump. The
// returned geometries are WGS84.
func readFeatureFile(ctx context.Context, path string) ([]*geojson.Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".geojson") || strings.HasSuffix(path, ".json") {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read geojson file: %w", err)
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode geojson file: %v", entities.ErrInvalid, err)
		}
		return fc.Features, nil
	}

	var scanner osm.Scanner
	if strings.HasSuffix(path, ".osm.pbf") {
		scanner = osmpbf.New(ctx, f, runtime.GOMAXPROCS(-1))
	} else if strings.HasSuffix(path, ".osm.bz2") {
		compressedReader := bzip2.NewReader(f)
		scanner = osmxml.New(ctx, compressedReader)
	} else if strings.HasSuffix(path, ".osm") {
		scanner = osmxml.New(ctx, f)
	} else {
		return nil, fmt.Errorf("%w: feature file must either be '.geojson', a '.osm'-XML, a '.osm.bz2'-compressed-XML or a '.osm.pbf'-protobuf file", entities.ErrInvalid)
	}
	defer scanner.Close()

	o := &osm.OSM{}
	for scanner.Scan() {
		switch obj := scanner.Object().(type) {
		case *osm.Node:
			o.Nodes = append(o.Nodes, obj)
		case *osm.Way:
			o.Ways = append(o.Ways, obj)
		case *osm.Relation:
			o.Relations = append(o.Relations, obj)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan osm dump file: %w", err)
	}

	fc, err := osmgeojson.Convert(o, osmgeojson.NoMeta(true), osmgeojson.NoRelationMembership(true))
	if err != nil {
		return nil, fmt.Errorf("failed to convert osm data: %w", err)
	}
	return fc.Features, nil
}

// importable converts decoded WGS84 features into layer features. Features
// without a valid geometry of the layer kind are skipped.
func importable(layer entities.Layer, in []*geojson.Feature) ([]entities.Feature, error) {
	out := make([]entities.Feature, 0, len(in))
	for _, gf := range in {
		if gf == nil || gf.Geometry == nil || !geometry.Valid(gf.Geometry) {
			continue
		}
		if layer.Kind != entities.KindUnknown && entities.KindOf(gf.Geometry) != layer.Kind {
			continue
		}

		f := entities.FeatureFromGeoJSON(layer.Name, gf)
		flattenTags(f.Properties)

		g, err := srs.TransformGeometry(f.Geometry, srs.WGS84, layer.SRID)
		if err != nil {
			return nil, err
		}
		f.Geometry = g
		out = append(out, f)
	}
	return out, nil
}

// flattenTags lifts OSM tags to top level properties.
func flattenTags(props geojson.Properties) {
	tags, ok := props["tags"].(map[string]string)
	if !ok {
		return
	}
	delete(props, "tags")
	for k, v := range tags {
		if _, taken := props[k]; !taken {
			props[k] = v
		}
	}
}
