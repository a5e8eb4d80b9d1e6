package repository

import (
	"context"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
)

type RasterRepository interface {
	AddRaster(ctx context.Context, r entities.Raster) (int64, error)
	Raster(ctx context.Context, id int64) (entities.Raster, error)
	// Rasters returns every raster ordered by event time, then id.
	Rasters(ctx context.Context) ([]entities.Raster, error)
}
