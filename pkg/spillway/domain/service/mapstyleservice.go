package service

import (
	"context"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/srs"
	"strings"
)

const (
	styleName    = "spillway"
	styleMaxZoom = 19
	lineWidth    = 1.5
	circleRadius = 3.0
)

type MapStyleService interface {
	GetMapStyle(ctx context.Context) (entities.MapStyle, error)
}

type mapStyleService struct {
	publicUrl      string
	fillColor      string
	strokeColor    string
	dataRepository repository.FeatureRepository
}

func NewMapStyleService(publicUrl, fillColor, strokeColor string, dataRepository repository.FeatureRepository) MapStyleService {
	return &mapStyleService{
		publicUrl:      strings.TrimSuffix(publicUrl, "/"),
		fillColor:      fillColor,
		strokeColor:    strokeColor,
		dataRepository: dataRepository,
	}
}

// GetMapStyle describes every layer as its own vector source with a single
// style layer typed from the layer geometry kind.
func (m *mapStyleService) GetMapStyle(ctx context.Context) (entities.MapStyle, error) {
	layers, err := m.dataRepository.Layers(ctx)
	if err != nil {
		return entities.MapStyle{}, fmt.Errorf("failed to list layers: %w", err)
	}

	style := entities.MapStyle{
		Version: 8,
		Name:    styleName,
		Layers:  make([]entities.StyleLayer, 0, len(layers)),
		Sources: make(map[string]entities.Source, len(layers)),
	}
	for _, layer := range layers {
		source, err := m.source(ctx, layer)
		if err != nil {
			return entities.MapStyle{}, err
		}
		style.Sources[layer.Name] = source
		style.Layers = append(style.Layers, m.styleLayer(layer))
	}
	return style, nil
}

func (m *mapStyleService) source(ctx context.Context, layer entities.Layer) (entities.Source, error) {
	source := entities.Source{
		Type: "vector",
		TilesURLs: []string{
			fmt.Sprintf("%s/vectiles/%s/{z}/{x}/{y}.pbf", m.publicUrl, layer.Name),
		},
		MaxZoom: styleMaxZoom,
	}

	extent, ok, err := m.dataRepository.Extent(ctx, layer.Name)
	if err != nil {
		return entities.Source{}, fmt.Errorf("failed to get extent of layer %s: %w", layer.Name, err)
	}
	if !ok {
		return source, nil
	}
	if extent, err = srs.TransformExtent(extent, srs.WGS84); err != nil {
		return entities.Source{}, err
	}
	values := extent.Values()
	source.Bounds = values[:]
	return source, nil
}

func (m *mapStyleService) styleLayer(layer entities.Layer) entities.StyleLayer {
	styleLayer := entities.StyleLayer{
		ID:          layer.Name,
		Type:        layer.Kind.StyleType(),
		Source:      layer.Name,
		SourceLayer: layer.Name,
	}

	switch styleLayer.Type {
	case "circle":
		styleLayer.Paint.CirclePaint = &entities.CirclePaint{
			CircleColor:  ptr(m.strokeColor),
			CircleRadius: ptr(circleRadius),
		}
	case "line":
		styleLayer.Paint.LinePaint = &entities.LinePaint{
			LineColor: ptr(m.strokeColor),
			LineWidth: ptr(lineWidth),
		}
	default:
		styleLayer.Paint.FillPaint = &entities.FillPaint{
			FillColor:        ptr(m.fillColor),
			FillOutlineColor: ptr(m.strokeColor),
		}
	}
	return styleLayer
}

func ptr[T any](v T) *T {
	return &v
}
