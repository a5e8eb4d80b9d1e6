package infrastructure

import (
	"context"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/geometry"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulmach/orb"
	"sort"
	"sync"
)

var _ repository.FeatureRepository = (*MemoryFeatureRepository)(nil)

// MemoryFeatureRepository keeps layers in process memory. Spatial lookups
// use the planar predicates of the geometry package.
type MemoryFeatureRepository struct {
	mu       sync.RWMutex
	layers   map[string]entities.Layer
	features map[string][]entities.Feature
	nextID   int64
}

func NewMemoryFeatureRepository() *MemoryFeatureRepository {
	return &MemoryFeatureRepository{
		layers:   map[string]entities.Layer{},
		features: map[string][]entities.Feature{},
	}
}

func (m *MemoryFeatureRepository) CreateLayer(_ context.Context, layer entities.Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.layers[layer.Name]; ok {
		return fmt.Errorf("%w: layer %s already exists", entities.ErrInvalid, layer.Name)
	}
	m.layers[layer.Name] = layer
	return nil
}

func (m *MemoryFeatureRepository) Layer(_ context.Context, name string) (entities.Layer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	layer, ok := m.layers[name]
	if !ok {
		return entities.Layer{}, fmt.Errorf("%w: layer %s", entities.ErrNotFound, name)
	}
	return layer, nil
}

func (m *MemoryFeatureRepository) Layers(_ context.Context) ([]entities.Layer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entities.Layer, 0, len(m.layers))
	for _, layer := range m.layers {
		out = append(out, layer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryFeatureRepository) AddFeatures(_ context.Context, layer string, features []entities.Feature) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.layers[layer]; !ok {
		return nil, fmt.Errorf("%w: layer %s", entities.ErrNotFound, layer)
	}

	ids := make([]int64, 0, len(features))
	for _, f := range features {
		m.nextID++
		f.ID = m.nextID
		f.Layer = layer
		f.Geometry = orb.Clone(f.Geometry)
		if f.Properties != nil {
			f.Properties = f.Properties.Clone()
		}
		m.features[layer] = append(m.features[layer], f)
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (m *MemoryFeatureRepository) Feature(_ context.Context, layer string, id int64) (entities.Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, f := range m.features[layer] {
		if f.ID == id {
			return copyFeature(f), nil
		}
	}
	return entities.Feature{}, fmt.Errorf("%w: feature %d of layer %s", entities.ErrNotFound, id, layer)
}

func (m *MemoryFeatureRepository) Features(_ context.Context, layer string, q repository.FeatureQuery) ([]entities.Feature, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.layers[layer]; !ok {
		return nil, 0, fmt.Errorf("%w: layer %s", entities.ErrNotFound, layer)
	}

	var matches []entities.Feature
	for _, f := range m.features[layer] {
		if q.Geometry == nil || matchLookup(q.Lookup, f.Geometry, q.Geometry) {
			matches = append(matches, f)
		}
	}

	count := len(matches)
	if q.Offset >= count {
		return []entities.Feature{}, count, nil
	}
	matches = matches[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matches) {
		matches = matches[:q.Limit]
	}

	out := make([]entities.Feature, len(matches))
	for i, f := range matches {
		out[i] = copyFeature(f)
	}
	return out, count, nil
}

func (m *MemoryFeatureRepository) Extent(_ context.Context, layer string) (entities.Extent, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.layers[layer]
	if !ok {
		return entities.Extent{}, false, fmt.Errorf("%w: layer %s", entities.ErrNotFound, layer)
	}
	features := m.features[layer]
	if len(features) == 0 {
		return entities.Extent{}, false, nil
	}

	b := features[0].Geometry.Bound()
	for _, f := range features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return entities.Extent{Bound: b, SRID: l.SRID}, true, nil
}

func (m *MemoryFeatureRepository) Import(ctx context.Context, layer string, path string) (int, error) {
	l, err := m.Layer(ctx, layer)
	if err != nil {
		return 0, err
	}

	decoded, err := readFeatureFile(ctx, path)
	if err != nil {
		return 0, err
	}
	features, err := importable(l, decoded)
	if err != nil {
		return 0, err
	}

	ids, err := m.AddFeatures(ctx, layer, features)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// matchLookup reports whether stored satisfies the lookup against query.
func matchLookup(lookup entities.Lookup, stored, query orb.Geometry) bool {
	switch lookup {
	case entities.LookupBBox:
		return stored.Bound().Intersects(query.Bound())
	case entities.LookupContains:
		return geometry.Contains(stored, query)
	case entities.LookupWithin:
		return geometry.Within(stored, query)
	default:
		return geometry.Intersects(stored, query)
	}
}

func copyFeature(f entities.Feature) entities.Feature {
	f.Geometry = orb.Clone(f.Geometry)
	if f.Properties != nil {
		f.Properties = f.Properties.Clone()
	}
	return f
}
