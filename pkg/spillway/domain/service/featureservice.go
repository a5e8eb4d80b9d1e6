package service

import (
	"bytes"
	"context"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/geometry"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"io"
	"log/slog"
	"regexp"
	"strconv"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
	svgPrecision    = 6
)

var layerNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,62}$`)

// FeatureListQuery filters and pages the features of a layer. Geometry is
// given in GeometrySRID. Simplify is a tolerance in the units of SRID, the
// output reference system; SRID 0 keeps the layer SRID.
type FeatureListQuery struct {
	Lookup       entities.Lookup
	Geometry     orb.Geometry
	GeometrySRID int
	Page         int
	PageSize     int
	Simplify     float64
	SRID         int
}

// FeaturePage is one page of a feature listing.
type FeaturePage struct {
	Features []entities.Feature
	Count    int
	Page     int
	PageSize int
	SRID     int
}

func (p FeaturePage) HasNext() bool {
	return p.Page*p.PageSize < p.Count
}

func (p FeaturePage) HasPrevious() bool {
	return p.Page > 1
}

type FeatureService interface {
	CreateLayer(ctx context.Context, layer entities.Layer) error
	Layer(ctx context.Context, name string) (entities.Layer, error)
	Layers(ctx context.Context) ([]entities.Layer, error)
	ListFeatures(ctx context.Context, layer string, q FeatureListQuery) (FeaturePage, error)
	// GetFeature returns one feature in srid (0 keeps the layer SRID) and
	// the SRID it is expressed in.
	GetFeature(ctx context.Context, layer string, id int64, simplify float64, srid int) (entities.Feature, int, error)
	// AddFeatures validates GeoJSON features given in srid and stores them in
	// the layer SRID.
	AddFeatures(ctx context.Context, layer string, features []*geojson.Feature, srid int) ([]int64, error)
	Import(ctx context.Context, layer string, path string) (int, error)
	// Encode writes features, expressed in srid, as KML, KMZ or SVG.
	Encode(w io.Writer, name string, features []entities.Feature, srid int, format entities.OutputFormat) error
}

type featureService struct {
	dataRepository repository.FeatureRepository
	log            *slog.Logger
}

func NewFeatureService(dataRepository repository.FeatureRepository, log *slog.Logger) FeatureService {
	return &featureService{
		dataRepository: dataRepository,
		log:            log,
	}
}

func (s *featureService) CreateLayer(ctx context.Context, layer entities.Layer) error {
	verr := &entities.ValidationError{}
	if !layerNamePattern.MatchString(layer.Name) {
		verr.Add("name", "must start with a letter and contain only letters, digits, '_' or '-'")
	}
	if layer.SRID == 0 {
		layer.SRID = srs.WGS84
	}
	if !srs.Supported(layer.SRID) {
		verr.Add("srid", fmt.Sprintf("unsupported srid %d", layer.SRID))
	}
	if !verr.Empty() {
		return verr
	}

	if err := s.dataRepository.CreateLayer(ctx, layer); err != nil {
		return fmt.Errorf("failed to create layer %s: %w", layer.Name, err)
	}
	s.log.InfoContext(ctx, "layer created", "layer", layer.Name, "srid", layer.SRID)
	return nil
}

func (s *featureService) Layer(ctx context.Context, name string) (entities.Layer, error) {
	return s.dataRepository.Layer(ctx, name)
}

func (s *featureService) Layers(ctx context.Context) ([]entities.Layer, error) {
	return s.dataRepository.Layers(ctx)
}

func (s *featureService) ListFeatures(ctx context.Context, layerName string, q FeatureListQuery) (FeaturePage, error) {
	layer, err := s.dataRepository.Layer(ctx, layerName)
	if err != nil {
		return FeaturePage{}, err
	}

	page, pageSize, err := pagination(q.Page, q.PageSize)
	if err != nil {
		return FeaturePage{}, err
	}

	query := repository.FeatureQuery{
		Lookup: q.Lookup,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if q.Geometry != nil {
		from := q.GeometrySRID
		if from == 0 {
			from = srs.WGS84
		}
		if query.Geometry, err = srs.TransformGeometry(q.Geometry, from, layer.SRID); err != nil {
			return FeaturePage{}, err
		}
		if query.Lookup == "" {
			query.Lookup = entities.LookupIntersects
		}
	}

	features, count, err := s.dataRepository.Features(ctx, layerName, query)
	if err != nil {
		return FeaturePage{}, fmt.Errorf("failed to list features of %s: %w", layerName, err)
	}

	srid := outputSRID(layer, q.SRID)
	for i := range features {
		if features[i], err = prepare(features[i], layer.SRID, srid, q.Simplify); err != nil {
			return FeaturePage{}, err
		}
	}

	return FeaturePage{
		Features: features,
		Count:    count,
		Page:     page,
		PageSize: pageSize,
		SRID:     srid,
	}, nil
}

func (s *featureService) GetFeature(ctx context.Context, layerName string, id int64, simplify float64, srid int) (entities.Feature, int, error) {
	layer, err := s.dataRepository.Layer(ctx, layerName)
	if err != nil {
		return entities.Feature{}, 0, err
	}
	f, err := s.dataRepository.Feature(ctx, layerName, id)
	if err != nil {
		return entities.Feature{}, 0, err
	}

	srid = outputSRID(layer, srid)
	if f, err = prepare(f, layer.SRID, srid, simplify); err != nil {
		return entities.Feature{}, 0, err
	}
	return f, srid, nil
}

func (s *featureService) AddFeatures(ctx context.Context, layerName string, in []*geojson.Feature, srid int) ([]int64, error) {
	layer, err := s.dataRepository.Layer(ctx, layerName)
	if err != nil {
		return nil, err
	}
	if srid == 0 {
		srid = srs.WGS84
	}

	verr := &entities.ValidationError{}
	features := make([]entities.Feature, 0, len(in))
	for i, gf := range in {
		field := "features." + strconv.Itoa(i) + ".geometry"
		if gf == nil || gf.Geometry == nil {
			verr.Add(field, "geometry is required")
			continue
		}
		if !geometry.Valid(gf.Geometry) {
			verr.Add(field, "invalid geometry")
			continue
		}
		if layer.Kind != entities.KindUnknown && entities.KindOf(gf.Geometry) != layer.Kind {
			verr.Add(field, fmt.Sprintf("layer holds %s, got %s", layer.Kind, entities.KindOf(gf.Geometry)))
			continue
		}

		f := entities.FeatureFromGeoJSON(layerName, gf)
		if f.Geometry, err = srs.TransformGeometry(f.Geometry, srid, layer.SRID); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	if len(in) == 0 {
		verr.Add("features", "at least one feature is required")
	}
	if !verr.Empty() {
		return nil, verr
	}

	ids, err := s.dataRepository.AddFeatures(ctx, layerName, features)
	if err != nil {
		return nil, fmt.Errorf("failed to add features to %s: %w", layerName, err)
	}
	s.log.InfoContext(ctx, "features added", "layer", layerName, "count", len(ids))
	return ids, nil
}

func (s *featureService) Import(ctx context.Context, layerName string, path string) (int, error) {
	n, err := s.dataRepository.Import(ctx, layerName, path)
	if err != nil {
		return 0, fmt.Errorf("failed to import %s into %s: %w", path, layerName, err)
	}
	s.log.InfoContext(ctx, "features imported", "layer", layerName, "path", path, "count", n)
	return n, nil
}

func (s *featureService) Encode(w io.Writer, name string, features []entities.Feature, srid int, format entities.OutputFormat) error {
	switch format.Format {
	case entities.FormatKML, entities.FormatKMZ:
		placemarks := make([]geometry.Placemark, 0, len(features))
		for _, f := range features {
			g, err := srs.TransformGeometry(f.Geometry, srid, srs.WGS84)
			if err != nil {
				return err
			}
			placemarks = append(placemarks, geometry.Placemark{
				Name:       placemarkName(f),
				Properties: f.Properties,
				Geometry:   g,
			})
		}
		if format.Format == entities.FormatKML {
			return geometry.EncodeKML(w, name, placemarks)
		}
		data, err := geometry.EncodeKMZ(name, placemarks)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, bytes.NewReader(data))
		return err
	case entities.FormatSVG:
		var bound orb.Bound
		shapes := make([]geometry.SVGShape, 0, len(features))
		for i, f := range features {
			if i == 0 {
				bound = f.Geometry.Bound()
			} else {
				bound = bound.Union(f.Geometry.Bound())
			}
			shapes = append(shapes, geometry.SVGShape{ID: strconv.FormatInt(f.ID, 10), Geometry: f.Geometry})
		}
		return geometry.WriteSVG(w, bound, shapes, svgPrecision)
	default:
		return fmt.Errorf("%w: features cannot be encoded as %s", entities.ErrUnsupportedFormat, format)
	}
}

func placemarkName(f entities.Feature) string {
	if name, ok := f.Properties["name"].(string); ok {
		return name
	}
	return strconv.FormatInt(f.ID, 10)
}

func pagination(page, pageSize int) (int, int, error) {
	verr := &entities.ValidationError{}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		verr.Add("page", "must be positive")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		verr.Add("page_size", fmt.Sprintf("must be within [1, %d]", MaxPageSize))
	}
	if !verr.Empty() {
		return 0, 0, verr
	}
	return page, pageSize, nil
}

func outputSRID(layer entities.Layer, srid int) int {
	if srid == 0 {
		return layer.SRID
	}
	return srid
}

// prepare reprojects f into srid and then simplifies it with a tolerance
// expressed in srid units.
func prepare(f entities.Feature, from, to int, tolerance float64) (entities.Feature, error) {
	g, err := srs.TransformGeometry(f.Geometry, from, to)
	if err != nil {
		return entities.Feature{}, fmt.Errorf("failed to transform feature %d: %w", f.ID, err)
	}
	if tolerance > 0 {
		g = geometry.SimplifyPreserveTopology(g, tolerance)
	}
	f.Geometry = g
	return f, nil
}
