package service

import (
	"context"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/raster"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulmach/orb"
	"io"
	"log/slog"
	"time"
)

// Classification methods accepted by RasterService.Classes.
const (
	ClassesLinear    = "linear"
	ClassesQuantiles = "quantiles"
)

type RasterService interface {
	AddRaster(ctx context.Context, r entities.Raster) (int64, error)
	GetRaster(ctx context.Context, id int64) (entities.Raster, error)
	ListRasters(ctx context.Context) ([]entities.Raster, error)
	// Summarize reduces a raster over g, given in srid: the pixel value
	// under a point or the mean over an area.
	Summarize(ctx context.Context, id int64, g orb.Geometry, srid int) (float64, error)
	// Window cuts the pixels covering bbox, given in srid, out of a raster.
	Window(ctx context.Context, id int64, bbox orb.Bound, srid int) (entities.Raster, error)
	Classes(ctx context.Context, id int64, method string, limits *raster.Limits, k int) ([]float64, error)
	// Periods averages the time ordered raster stack over n periods. With a
	// geometry each raster contributes its summary value, otherwise its
	// whole grid.
	Periods(ctx context.Context, g orb.Geometry, srid int, n int) ([][]float64, error)
	Encode(w io.Writer, r entities.Raster, format entities.OutputFormat) error
}

type rasterService struct {
	rasterRepository repository.RasterRepository
	log              *slog.Logger
}

func NewRasterService(rasterRepository repository.RasterRepository, log *slog.Logger) RasterService {
	return &rasterService{
		rasterRepository: rasterRepository,
		log:              log,
	}
}

func (s *rasterService) AddRaster(ctx context.Context, r entities.Raster) (int64, error) {
	verr := &entities.ValidationError{}
	if r.Width <= 0 || r.Height <= 0 {
		verr.Add("shape", "width and height must be positive")
	} else if len(r.Data) != r.Width*r.Height {
		verr.Add("data", fmt.Sprintf("want %d values, got %d", r.Width*r.Height, len(r.Data)))
	}
	if r.SRID == 0 {
		r.SRID = srs.WGS84
	}
	if !srs.Supported(r.SRID) {
		verr.Add("srid", fmt.Sprintf("unsupported srid %d", r.SRID))
	}
	if _, _, ok := r.Affine.Inverse(orb.Point{}); !ok {
		verr.Add("affine", "geotransform is singular")
	}
	if !verr.Empty() {
		return 0, verr
	}
	if r.Event.IsZero() {
		r.Event = time.Now().UTC()
	}

	id, err := s.rasterRepository.AddRaster(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("failed to add raster: %w", err)
	}
	s.log.InfoContext(ctx, "raster added", "raster", id, "width", r.Width, "height", r.Height)
	return id, nil
}

func (s *rasterService) GetRaster(ctx context.Context, id int64) (entities.Raster, error) {
	return s.rasterRepository.Raster(ctx, id)
}

func (s *rasterService) ListRasters(ctx context.Context) ([]entities.Raster, error) {
	return s.rasterRepository.Rasters(ctx)
}

func (s *rasterService) Summarize(ctx context.Context, id int64, g orb.Geometry, srid int) (float64, error) {
	r, err := s.rasterRepository.Raster(ctx, id)
	if err != nil {
		return 0, err
	}
	return summarize(r, g, srid)
}

func summarize(r entities.Raster, g orb.Geometry, srid int) (float64, error) {
	g, err := srs.TransformGeometry(g, sridOrDefault(srid), r.SRID)
	if err != nil {
		return 0, err
	}
	return raster.Summarize(r, g)
}

func (s *rasterService) Window(ctx context.Context, id int64, bbox orb.Bound, srid int) (entities.Raster, error) {
	r, err := s.rasterRepository.Raster(ctx, id)
	if err != nil {
		return entities.Raster{}, err
	}
	extent, err := srs.TransformExtent(entities.Extent{Bound: bbox, SRID: sridOrDefault(srid)}, r.SRID)
	if err != nil {
		return entities.Raster{}, err
	}
	return raster.Window(r, extent.Bound)
}

func (s *rasterService) Classes(ctx context.Context, id int64, method string, limits *raster.Limits, k int) ([]float64, error) {
	r, err := s.rasterRepository.Raster(ctx, id)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		k = raster.DefaultClasses
	}

	switch method {
	case "", ClassesLinear:
		return raster.Linear(r, limits, k)
	case ClassesQuantiles:
		return raster.Quantiles(r, k)
	default:
		return nil, entities.NewValidationError("classes", fmt.Sprintf("unknown method %q", method))
	}
}

func (s *rasterService) Periods(ctx context.Context, g orb.Geometry, srid int, n int) ([][]float64, error) {
	rasters, err := s.rasterRepository.Rasters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rasters: %w", err)
	}

	stack := make([][]float64, 0, len(rasters))
	for _, r := range rasters {
		if g == nil {
			stack = append(stack, r.Data)
			continue
		}
		v, err := summarize(r, g, srid)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize raster %d: %w", r.ID, err)
		}
		stack = append(stack, []float64{v})
	}
	return raster.AggregatePeriods(stack, n)
}

func (s *rasterService) Encode(w io.Writer, r entities.Raster, format entities.OutputFormat) error {
	if !format.Zipped {
		return raster.Encode(w, r, format.Format)
	}
	data, err := raster.EncodeArchive(r, format.Format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write raster archive: %w", err)
	}
	return nil
}

func sridOrDefault(srid int) int {
	if srid == 0 {
		return srs.WGS84
	}
	return srid
}
