package infrastructure

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/sqlitedriver"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"math"
	"time"
)

var _ repository.RasterRepository = (*SqliteRasterRepository)(nil)

// NewSqliteRasterRepository stores rasters in a plain SQLite database. Pixel
// data is kept as a little endian float64 blob.
func NewSqliteRasterRepository(sqliteConnString string) (*SqliteRasterRepository, error) {
	sqlConn, err := sql.Open(sqlitedriver.Plain, sqliteConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to open raster database connection: %w", err)
	}
	sqlConn.SetMaxOpenConns(1)

	if err := execSchema(sqlConn, "raster.sql"); err != nil {
		return nil, err
	}
	return &SqliteRasterRepository{conn: sqlConn}, nil
}

type SqliteRasterRepository struct {
	conn *sql.DB
}

func (s *SqliteRasterRepository) Close() error {
	return s.conn.Close()
}

func (s *SqliteRasterRepository) AddRaster(ctx context.Context, r entities.Raster) (int64, error) {
	affine, err := json.Marshal(r.Affine)
	if err != nil {
		return 0, fmt.Errorf("failed to encode raster affine: %w", err)
	}

	var nodata sql.NullFloat64
	if r.NoData != nil {
		nodata = sql.NullFloat64{Float64: *r.NoData, Valid: true}
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO raster (name, srid, affine, width, height, nodata, event, created_at, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.Name, r.SRID, string(affine), r.Width, r.Height, nodata,
		r.Event.UnixNano(), createdAt.UnixNano(), encodeBand(r.Data),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert raster: %w", err)
	}
	return res.LastInsertId()
}

func (s *SqliteRasterRepository) Raster(ctx context.Context, id int64) (entities.Raster, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT raster_id, name, srid, affine, width, height, nodata, event, created_at, data FROM raster WHERE raster_id = ?", id,
	)
	r, err := scanRaster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Raster{}, fmt.Errorf("%w: raster %d", entities.ErrNotFound, id)
	}
	if err != nil {
		return entities.Raster{}, fmt.Errorf("failed to query raster: %w", err)
	}
	return r, nil
}

func (s *SqliteRasterRepository) Rasters(ctx context.Context) ([]entities.Raster, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT raster_id, name, srid, affine, width, height, nodata, event, created_at, data FROM raster ORDER BY event, raster_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rasters: %w", err)
	}
	defer rows.Close()

	rasters := []entities.Raster{}
	for rows.Next() {
		r, err := scanRaster(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raster: %w", err)
		}
		rasters = append(rasters, r)
	}
	return rasters, rows.Err()
}

func scanRaster(row rowScanner) (entities.Raster, error) {
	var r entities.Raster
	var affine string
	var nodata sql.NullFloat64
	var event, createdAt int64
	var data []byte
	err := row.Scan(&r.ID, &r.Name, &r.SRID, &affine, &r.Width, &r.Height, &nodata, &event, &createdAt, &data)
	if err != nil {
		return entities.Raster{}, err
	}

	if err := json.Unmarshal([]byte(affine), &r.Affine); err != nil {
		return entities.Raster{}, fmt.Errorf("failed to decode raster affine: %w", err)
	}
	if nodata.Valid {
		v := nodata.Float64
		r.NoData = &v
	}
	r.Event = time.Unix(0, event).UTC()
	r.CreatedAt = time.Unix(0, createdAt).UTC()

	if r.Data, err = decodeBand(data, r.Width*r.Height); err != nil {
		return entities.Raster{}, err
	}
	return r, nil
}

func encodeBand(data []float64) []byte {
	out := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func decodeBand(data []byte, n int) ([]float64, error) {
	if len(data) != 8*n {
		return nil, fmt.Errorf("raster band holds %d bytes, want %d", len(data), 8*n)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return out, nil
}
