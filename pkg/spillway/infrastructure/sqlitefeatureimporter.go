package infrastructure

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulmach/orb/encoding/wkb"
)

type sqlitefeatureimporter struct {
	srid int

	insertFeaturePreparedStatement *sql.Stmt
}

func (s *sqlitefeatureimporter) init(tx *sql.Tx, srid int) error {
	s.srid = srid
	if err := s.prepareStatements(tx); err != nil {
		return fmt.Errorf("failed to prepare statements: %w", err)
	}

	return nil
}

func (s *sqlitefeatureimporter) prepareStatements(tx *sql.Tx) error {
	var err error

	s.insertFeaturePreparedStatement, err = tx.Prepare(
		"INSERT INTO feature (layer, properties, min_x, min_y, max_x, max_y, geom) VALUES (?, ?, ?, ?, ?, ?, GeomFromWKB(?, ?))",
	)
	if err != nil {
		return err
	}

	return nil
}

func (s *sqlitefeatureimporter) close() {
	if s.insertFeaturePreparedStatement != nil {
		s.insertFeaturePreparedStatement.Close()
	}
}

func (s *sqlitefeatureimporter) importFeature(layer string, f entities.Feature) (int64, error) {
	geom, err := wkb.Marshal(f.Geometry)
	if err != nil {
		return 0, fmt.Errorf("failed to encode feature geometry: %w", err)
	}

	props := f.Properties
	if props == nil {
		props = map[string]any{}
	}
	properties, err := json.Marshal(props)
	if err != nil {
		return 0, fmt.Errorf("failed to encode feature properties: %w", err)
	}

	b := f.Geometry.Bound()
	res, err := s.insertFeaturePreparedStatement.Exec(
		layer, string(properties), b.Min[0], b.Min[1], b.Max[0], b.Max[1], geom, s.srid,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feature: %w", err)
	}

	return res.LastInsertId()
}
