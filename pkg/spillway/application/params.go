package application

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("param"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// TileParams are the inputs of a vector or rendered raster tile request.
type TileParams struct {
	Layer  string          `param:"layer" validate:"required"`
	Z      int             `param:"z" validate:"min=0,max=30"`
	X      int             `param:"x" validate:"min=0"`
	Y      int             `param:"y" validate:"min=0"`
	Format entities.Format `param:"format"`
	Clip   bool            `param:"clip"`
	Style  string          `param:"style"`
	Band   int             `param:"band" validate:"min=1,max=1"`
	Size   int             `param:"size" validate:"omitempty,min=16,max=2048"`
	Limits *raster.Limits  `param:"limits"`
	Gzip   bool            `param:"-"`
	Query  url.Values      `param:"-"`
}

func (p TileParams) Tile() entities.TileAddress {
	return entities.TileAddress{Z: p.Z, X: p.X, Y: p.Y}
}

// ParseTileParams reads a tile request. format is the path suffix, which wins
// over the format query param; def is used when neither is given.
func ParseTileParams(layer, z, x, y, format string, query url.Values, def entities.Format) (TileParams, error) {
	verr := &entities.ValidationError{}
	p := TileParams{
		Layer: layer,
		Z:     parseInt(verr, "z", z),
		X:     parseInt(verr, "x", x),
		Y:     parseInt(verr, "y", y),
		Style: query.Get("style"),
		Band:  1,
		Query: query,
	}

	f, err := parseFormat(format, query, def)
	if err != nil {
		return TileParams{}, err
	}
	p.Format = f.Format

	if v := query.Get("clip"); v != "" {
		clip, err := strconv.ParseBool(v)
		if err != nil {
			verr.Add("clip", "must be a boolean")
		}
		p.Clip = clip
	}
	if v := query.Get("band"); v != "" {
		p.Band = parseInt(verr, "band", v)
	}
	if v := query.Get("size"); v != "" {
		p.Size = parseInt(verr, "size", v)
	}
	p.Limits = parseLimits(verr, query.Get("limits"))

	return p, check(verr, p)
}

// FeatureListParams are the inputs of a feature listing.
type FeatureListParams struct {
	Layer    string                `param:"layer" validate:"required"`
	Lookup   entities.Lookup       `param:"lookup"`
	Geometry orb.Geometry          `param:"-"`
	Page     int                   `param:"page" validate:"min=1"`
	PageSize int                   `param:"page_size" validate:"min=1,max=1000"`
	Simplify float64               `param:"simplify" validate:"min=0"`
	SRID     int                   `param:"srs" validate:"min=0"`
	Format   entities.OutputFormat `param:"-"`
}

// ParseFeatureListParams reads a feature listing. The spatial filter is either
// bbox=w,s,e,n or one lookup name carrying a GeoJSON geometry, e.g.
// within={"type":"Polygon",...}; bbox wins when both are present.
func ParseFeatureListParams(layer, format string, query url.Values) (FeatureListParams, error) {
	verr := &entities.ValidationError{}
	p := FeatureListParams{
		Layer:    layer,
		Page:     1,
		PageSize: 100,
	}

	f, err := parseFormat(format, query, entities.FormatGeoJSON)
	if err != nil {
		return FeatureListParams{}, err
	}
	p.Format = f

	if v := query.Get("page"); v != "" {
		p.Page = parseInt(verr, "page", v)
	}
	if v := query.Get("page_size"); v != "" {
		p.PageSize = parseInt(verr, "page_size", v)
	}
	p.Simplify, p.SRID = parseGeometryOptions(verr, query)

	for _, lookup := range []entities.Lookup{entities.LookupIntersects, entities.LookupContains, entities.LookupWithin, "bboverlaps"} {
		v := query.Get(string(lookup))
		if v == "" {
			continue
		}
		g, err := parseGeometry(v)
		if err != nil {
			verr.Add(string(lookup), err.Error())
			break
		}
		p.Lookup, _ = entities.ParseLookup(string(lookup))
		p.Geometry = g
		break
	}
	if v := query.Get("bbox"); v != "" {
		b, err := parseBBox(v)
		if err != nil {
			verr.Add("bbox", err.Error())
		} else {
			p.Lookup = entities.LookupBBox
			p.Geometry = b.ToPolygon()
		}
	}

	return p, check(verr, p)
}

// FeatureParams are the inputs of a single feature request.
type FeatureParams struct {
	Layer    string                `param:"layer" validate:"required"`
	ID       int64                 `param:"id" validate:"min=1"`
	Simplify float64               `param:"simplify" validate:"min=0"`
	SRID     int                   `param:"srs" validate:"min=0"`
	Format   entities.OutputFormat `param:"-"`
}

func ParseFeatureParams(layer, id, format string, query url.Values) (FeatureParams, error) {
	verr := &entities.ValidationError{}
	p := FeatureParams{Layer: layer}

	f, err := parseFormat(format, query, entities.FormatGeoJSON)
	if err != nil {
		return FeatureParams{}, err
	}
	p.Format = f

	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		verr.Add("id", "must be an integer")
	}
	p.ID = n
	p.Simplify, p.SRID = parseGeometryOptions(verr, query)

	return p, check(verr, p)
}

// RasterParams are the inputs of a raster detail request. Geometry comes from
// g (GeoJSON) or bbox; a bbox selects a window, a geometry a summary value.
type RasterParams struct {
	ID       int64                 `param:"id" validate:"min=1"`
	Geometry orb.Geometry          `param:"g"`
	BBox     *orb.Bound            `param:"bbox"`
	SRID     int                   `param:"srid" validate:"min=0"`
	Format   entities.OutputFormat `param:"-"`
}

func ParseRasterParams(id, format string, query url.Values) (RasterParams, error) {
	verr := &entities.ValidationError{}
	p := RasterParams{}

	f, err := parseFormat(format, query, entities.FormatJSON)
	if err != nil {
		return RasterParams{}, err
	}
	p.Format = f

	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		verr.Add("id", "must be an integer")
	}
	p.ID = n

	if v := query.Get("g"); v != "" {
		if p.Geometry, err = parseGeometry(v); err != nil {
			verr.Add("g", err.Error())
		}
	} else if v := query.Get("bbox"); v != "" {
		b, err := parseBBox(v)
		if err != nil {
			verr.Add("bbox", err.Error())
		} else {
			p.BBox = &b
		}
	}
	if v := query.Get("srid"); v != "" {
		p.SRID = parseInt(verr, "srid", v)
	}

	return p, check(verr, p)
}

// PeriodsParams select the aggregated raster stack.
type PeriodsParams struct {
	Periods  int          `param:"periods" validate:"min=1"`
	Geometry orb.Geometry `param:"g"`
	SRID     int          `param:"srid" validate:"min=0"`
}

func ParsePeriodsParams(query url.Values) (PeriodsParams, bool, error) {
	v := query.Get("periods")
	if v == "" {
		return PeriodsParams{}, false, nil
	}

	verr := &entities.ValidationError{}
	p := PeriodsParams{Periods: parseInt(verr, "periods", v)}
	if g := query.Get("g"); g != "" {
		var err error
		if p.Geometry, err = parseGeometry(g); err != nil {
			verr.Add("g", err.Error())
		}
	}
	if s := query.Get("srid"); s != "" {
		p.SRID = parseInt(verr, "srid", s)
	}
	return p, true, check(verr, p)
}

// ClassesParams select class breaks of a raster: classes=linear|quantiles
// with an optional count k and, for linear, limits.
type ClassesParams struct {
	Method string         `param:"classes" validate:"oneof=linear quantiles"`
	K      int            `param:"k" validate:"min=2,max=256"`
	Limits *raster.Limits `param:"limits"`
}

func ParseClassesParams(query url.Values) (ClassesParams, bool, error) {
	method := query.Get("classes")
	if method == "" {
		return ClassesParams{}, false, nil
	}

	verr := &entities.ValidationError{}
	p := ClassesParams{Method: method, K: raster.DefaultClasses}
	if v := query.Get("k"); v != "" {
		p.K = parseInt(verr, "k", v)
	}
	p.Limits = parseLimits(verr, query.Get("limits"))
	return p, true, check(verr, p)
}

func parseLimits(verr *entities.ValidationError, v string) *raster.Limits {
	if v == "" {
		return nil
	}
	values, err := parseFloats(v)
	if err != nil || len(values) != 2 {
		verr.Add("limits", "enter two comma separated numbers")
		return nil
	}
	return &raster.Limits{Min: values[0], Max: values[1]}
}

func parseGeometryOptions(verr *entities.ValidationError, query url.Values) (float64, int) {
	var simplify float64
	var srid int
	if v := query.Get("simplify"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			verr.Add("simplify", "must be a number")
		}
		simplify = f
	}
	if v := query.Get("srs"); v != "" {
		srid = parseInt(verr, "srs", v)
	}
	return simplify, srid
}

func parseFormat(suffix string, query url.Values, def entities.Format) (entities.OutputFormat, error) {
	name := strings.TrimPrefix(suffix, ".")
	if name == "" {
		name = query.Get("format")
	}
	if name == "" {
		return entities.OutputFormat{Format: def}, nil
	}
	return entities.ParseFormat(name)
}

func parseInt(verr *entities.ValidationError, field, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		verr.Add(field, "must be an integer")
	}
	return n
}

func parseFloats(v string) ([]float64, error) {
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func parseBBox(v string) (orb.Bound, error) {
	values, err := parseFloats(v)
	if err != nil || len(values) != 4 {
		return orb.Bound{}, errors.New("enter four comma separated numbers")
	}
	if values[0] > values[2] || values[1] > values[3] {
		return orb.Bound{}, errors.New("minimum exceeds maximum")
	}
	return orb.Bound{Min: orb.Point{values[0], values[1]}, Max: orb.Point{values[2], values[3]}}, nil
}

// parseGeometry accepts a GeoJSON geometry or Feature, or a w,s,e,n box.
func parseGeometry(v string) (orb.Geometry, error) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "{") {
		b, err := parseBBox(v)
		if err != nil {
			return nil, err
		}
		return b.ToPolygon(), nil
	}

	if strings.Contains(v, `"Feature"`) {
		f, err := geojson.UnmarshalFeature([]byte(v))
		if err != nil || f.Geometry == nil {
			return nil, errors.New("invalid geometry value")
		}
		return f.Geometry, nil
	}
	g, err := geojson.UnmarshalGeometry([]byte(v))
	if err != nil || g.Geometry() == nil {
		return nil, errors.New("invalid geometry value")
	}
	return g.Geometry(), nil
}

// check runs the struct validation and merges it with the parse errors.
func check(verr *entities.ValidationError, params any) error {
	err := validate.Struct(params)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if _, seen := verr.Fields[fe.Field()]; seen {
				continue
			}
			verr.Add(fe.Field(), describe(fe))
		}
	} else if err != nil {
		return fmt.Errorf("failed to validate params: %w", err)
	}

	if !verr.Empty() {
		return verr
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "ensure this value is greater than or equal to " + fe.Param()
	case "max":
		return "ensure this value is less than or equal to " + fe.Param()
	case "oneof":
		return "select one of: " + fe.Param()
	default:
		return "invalid value"
	}
}
