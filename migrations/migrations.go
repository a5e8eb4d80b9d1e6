package migrations

import "embed"

// FS holds schema.sql for the spatial feature store and raster.sql for the
// raster store.
//
//go:embed *.sql
var FS embed.FS
