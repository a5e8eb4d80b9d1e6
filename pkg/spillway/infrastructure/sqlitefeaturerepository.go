package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/mattn/go-sqlite3"
	"github.com/paulkoehlerdev/spillway/migrations"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/sqlitedriver"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"strings"
	"time"
)

var _ repository.FeatureRepository = (*SqliteFeatureRepository)(nil)

// spatialPredicates are the SpatiaLite functions backing each lookup. The
// bbox lookup is answered by the envelope columns alone.
var spatialPredicates = map[entities.Lookup]string{
	entities.LookupIntersects: "Intersects",
	entities.LookupContains:   "Contains",
	entities.LookupWithin:     "Within",
}

func NewSqliteFeatureRepository(sqliteConnString string) (*SqliteFeatureRepository, error) {
	sqlConn, err := sql.Open(sqlitedriver.SpatiaLite, sqliteConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature database connection: %w", err)
	}
	sqlConn.SetMaxOpenConns(1)

	return (&SqliteFeatureRepository{
		conn: sqlConn,
	}).init()
}

type SqliteFeatureRepository struct {
	conn *sql.DB
}

func (s *SqliteFeatureRepository) init() (*SqliteFeatureRepository, error) {
	if err := execSchema(s.conn, "schema.sql"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SqliteFeatureRepository) Close() error {
	return s.conn.Close()
}

func (s *SqliteFeatureRepository) CreateLayer(ctx context.Context, layer entities.Layer) error {
	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO layer (name, srid, kind, created_at) VALUES (?, ?, ?, ?)",
		layer.Name, layer.SRID, layer.Kind.String(), time.Now().UnixNano(),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: layer %s already exists", entities.ErrInvalid, layer.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert layer: %w", err)
	}
	return nil
}

func (s *SqliteFeatureRepository) Layer(ctx context.Context, name string) (entities.Layer, error) {
	row := s.conn.QueryRowContext(ctx, "SELECT name, srid, kind FROM layer WHERE name = ?", name)
	layer, err := scanLayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Layer{}, fmt.Errorf("%w: layer %s", entities.ErrNotFound, name)
	}
	if err != nil {
		return entities.Layer{}, fmt.Errorf("failed to query layer: %w", err)
	}
	return layer, nil
}

func (s *SqliteFeatureRepository) Layers(ctx context.Context) ([]entities.Layer, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT name, srid, kind FROM layer ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query layers: %w", err)
	}
	defer rows.Close()

	layers := []entities.Layer{}
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

func (s *SqliteFeatureRepository) AddFeatures(ctx context.Context, layer string, features []entities.Feature) ([]int64, error) {
	l, err := s.Layer(ctx, layer)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, l, features)
}

func (s *SqliteFeatureRepository) insert(ctx context.Context, layer entities.Layer, features []entities.Feature) ([]int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start feature database transaction: %w", err)
	}
	defer tx.Rollback()

	importer := sqlitefeatureimporter{}
	err = importer.init(tx, layer.SRID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqliteimporter: %w", err)
	}
	defer importer.close()

	ids := make([]int64, 0, len(features))
	for _, f := range features {
		id, err := importer.importFeature(layer.Name, f)
		if err != nil {
			return nil, fmt.Errorf("failed to import feature: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit feature database transaction: %w", err)
	}

	return ids, nil
}

func (s *SqliteFeatureRepository) Feature(ctx context.Context, layer string, id int64) (entities.Feature, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT feature_id, layer, properties, AsBinary(geom) FROM feature WHERE layer = ? AND feature_id = ?",
		layer, id,
	)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Feature{}, fmt.Errorf("%w: feature %d of layer %s", entities.ErrNotFound, id, layer)
	}
	if err != nil {
		return entities.Feature{}, fmt.Errorf("failed to query feature: %w", err)
	}
	return f, nil
}

func (s *SqliteFeatureRepository) Features(ctx context.Context, layer string, q repository.FeatureQuery) ([]entities.Feature, int, error) {
	l, err := s.Layer(ctx, layer)
	if err != nil {
		return nil, 0, err
	}

	where, args, err := featureFilter(l, q)
	if err != nil {
		return nil, 0, err
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM feature WHERE "+where, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count features: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	query := "SELECT feature_id, layer, properties, AsBinary(geom) FROM feature WHERE " + where +
		" ORDER BY feature_id LIMIT ? OFFSET ?"
	rows, err := s.conn.QueryContext(ctx, query, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	features := []entities.Feature{}
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read features: %w", err)
	}
	return features, count, nil
}

func (s *SqliteFeatureRepository) Extent(ctx context.Context, layer string) (entities.Extent, bool, error) {
	l, err := s.Layer(ctx, layer)
	if err != nil {
		return entities.Extent{}, false, err
	}

	var minX, minY, maxX, maxY sql.NullFloat64
	err = s.conn.QueryRowContext(ctx,
		"SELECT MIN(min_x), MIN(min_y), MAX(max_x), MAX(max_y) FROM feature WHERE layer = ?", layer,
	).Scan(&minX, &minY, &maxX, &maxY)
	if err != nil {
		return entities.Extent{}, false, fmt.Errorf("failed to query layer extent: %w", err)
	}
	if !minX.Valid {
		return entities.Extent{}, false, nil
	}

	return entities.Extent{
		Bound: orb.Bound{Min: orb.Point{minX.Float64, minY.Float64}, Max: orb.Point{maxX.Float64, maxY.Float64}},
		SRID:  l.SRID,
	}, true, nil
}

func (s *SqliteFeatureRepository) Import(ctx context.Context, layer string, path string) (int, error) {
	l, err := s.Layer(ctx, layer)
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

	ids, err := s.insert(ctx, l, features)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func featureFilter(layer entities.Layer, q repository.FeatureQuery) (string, []any, error) {
	where := []string{"layer = ?"}
	args := []any{layer.Name}
	if q.Geometry == nil {
		return where[0], args, nil
	}

	b := q.Geometry.Bound()
	where = append(where, "min_x <= ? AND max_x >= ? AND min_y <= ? AND max_y >= ?")
	args = append(args, b.Max[0], b.Min[0], b.Max[1], b.Min[1])

	lookup := q.Lookup
	if lookup == "" {
		lookup = entities.LookupIntersects
	}
	if fn, ok := spatialPredicates[lookup]; ok {
		geom, err := wkb.Marshal(q.Geometry)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode query geometry: %w", err)
		}
		where = append(where, fn+"(geom, GeomFromWKB(?, ?)) = 1")
		args = append(args, geom, layer.SRID)
	}

	return strings.Join(where, " AND "), args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLayer(row rowScanner) (entities.Layer, error) {
	var layer entities.Layer
	var kind string
	if err := row.Scan(&layer.Name, &layer.SRID, &kind); err != nil {
		return entities.Layer{}, err
	}
	k, err := entities.ParseGeometryKind(kind)
	if err != nil {
		return entities.Layer{}, err
	}
	layer.Kind = k
	return layer, nil
}

func scanFeature(row rowScanner) (entities.Feature, error) {
	var f entities.Feature
	var properties string
	var geom []byte
	if err := row.Scan(&f.ID, &f.Layer, &properties, &geom); err != nil {
		return entities.Feature{}, err
	}

	g, err := wkb.Unmarshal(geom)
	if err != nil {
		return entities.Feature{}, fmt.Errorf("failed to decode feature geometry: %w", err)
	}
	f.Geometry = g

	f.Properties = geojson.Properties{}
	if err := json.Unmarshal([]byte(properties), &f.Properties); err != nil {
		return entities.Feature{}, fmt.Errorf("failed to decode feature properties: %w", err)
	}
	return f, nil
}

// execSchema runs an embedded migration file statement by statement.
func execSchema(conn *sql.DB, name string) error {
	file, err := migrations.FS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to open schema file: %w", err)
	}

	for _, query := range strings.Split(string(file), ";") {
		if strings.TrimSpace(query) == "" {
			continue
		}
		if _, err := conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema file at query %s: %w", query, err)
		}
	}

	return nil
}
