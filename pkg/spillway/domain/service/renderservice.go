package service

import (
	"bytes"
	"context"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/raster"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/render"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/tiling"
	"github.com/paulmach/orb"
	"image"
)

// RenderRequest asks for one rendered image tile.
type RenderRequest struct {
	Tile   entities.TileAddress
	Size   int
	Style  string
	Limits *raster.Limits
	Format entities.Format
}

type RenderService interface {
	RenderVectorTile(ctx context.Context, layer string, req RenderRequest) ([]byte, error)
	RenderRasterTile(ctx context.Context, id int64, req RenderRequest) ([]byte, error)
}

type renderService struct {
	tiles            MapTilesService
	dataRepository   repository.FeatureRepository
	rasterRepository repository.RasterRepository
	renderer         *render.Renderer
}

func NewRenderService(tiles MapTilesService, dataRepository repository.FeatureRepository, rasterRepository repository.RasterRepository, renderer *render.Renderer) RenderService {
	return &renderService{
		tiles:            tiles,
		dataRepository:   dataRepository,
		rasterRepository: rasterRepository,
		renderer:         renderer,
	}
}

func (s *renderService) RenderVectorTile(ctx context.Context, layer string, req RenderRequest) ([]byte, error) {
	size, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	extent, ok, err := s.dataRepository.Extent(ctx, layer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: layer %s is empty", entities.ErrOutsideExtent, layer)
	}
	tile, err := tileBound(req.Tile, extent)
	if err != nil {
		return nil, err
	}

	features, err := s.tiles.TileFeatures(ctx, layer, req.Tile, true, srs.WebMercator)
	if err != nil {
		return nil, err
	}
	geoms := make([]orb.Geometry, 0, len(features))
	for _, f := range features {
		geoms = append(geoms, f.Geometry)
	}

	return encodeImage(s.renderer.Vector(geoms, tile, size), req.Format)
}

func (s *renderService) RenderRasterTile(ctx context.Context, id int64, req RenderRequest) ([]byte, error) {
	size, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	r, err := s.rasterRepository.Raster(ctx, id)
	if err != nil {
		return nil, err
	}
	tile, err := tileBound(req.Tile, entities.Extent{Bound: r.Bound(), SRID: r.SRID})
	if err != nil {
		return nil, err
	}

	img, err := s.renderer.Raster(r, tile, size, req.Style, req.Limits)
	if err != nil {
		return nil, err
	}
	return encodeImage(img, req.Format)
}

func (s *renderService) prepare(req RenderRequest) (int, error) {
	if !req.Format.IsImage() || req.Format == entities.FormatTIFF {
		return 0, fmt.Errorf("%w: tiles cannot be rendered as %s", entities.ErrUnsupportedFormat, req.Format)
	}
	return s.renderer.Size(req.Size)
}

// tileBound returns the web mercator bound of tile, or ErrOutsideExtent when
// the tile lies outside the grid or misses extent.
func tileBound(tile entities.TileAddress, extent entities.Extent) (orb.Bound, error) {
	if !tile.InRange() {
		return orb.Bound{}, fmt.Errorf("%w: tile %s is outside the grid", entities.ErrOutsideExtent, tile)
	}

	geographic, err := srs.TransformExtent(extent, srs.WGS84)
	if err != nil {
		return orb.Bound{}, err
	}
	if !tiling.Resolve(tile).Bound.Intersects(geographic.Bound) {
		return orb.Bound{}, fmt.Errorf("%w: tile %s", entities.ErrOutsideExtent, tile)
	}

	merc, err := tiling.ResolveMercator(tile)
	if err != nil {
		return orb.Bound{}, err
	}
	return merc.Bound, nil
}

func encodeImage(img image.Image, format entities.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := render.Encode(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
