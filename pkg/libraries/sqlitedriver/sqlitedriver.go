package sqlitedriver

import (
	"database/sql"
	"errors"
	"github.com/mattn/go-sqlite3"
	"sync"
)

const (
	// SpatiaLite opens connections with mod_spatialite loaded.
	SpatiaLite = "sqlite3_spatialite"
	// Plain is the stock driver, used where no spatial SQL is needed.
	Plain = "sqlite3"
)

var ErrSpatiaLiteMissing = errors.New("spatialite extension not found")

type entrypoint struct {
	lib  string
	proc string
}

var spatialiteLibNames = []entrypoint{
	{"mod_spatialite", "sqlite3_modspatialite_init"},
	{"mod_spatialite.so", "sqlite3_modspatialite_init"},
	{"mod_spatialite.dylib", "sqlite3_modspatialite_init"},
	{"libspatialite.so", "sqlite3_modspatialite_init"},
	{"libspatialite.so.5", "spatialite_init_ex"},
	{"libspatialite.so", "spatialite_init_ex"},
}

func loadSpatiaLite(conn *sqlite3.SQLiteConn) error {
	for _, v := range spatialiteLibNames {
		if err := conn.LoadExtension(v.lib, v.proc); err == nil {
			return nil
		}
	}
	return ErrSpatiaLiteMissing
}

func init() {
	sql.Register(SpatiaLite, &sqlite3.SQLiteDriver{
		ConnectHook: loadSpatiaLite,
	})
}

// SpatiaLiteAvailable reports whether the extension can be loaded on this
// host. The probe runs once.
var SpatiaLiteAvailable = sync.OnceValue(func() bool {
	db, err := sql.Open(SpatiaLite, ":memory:")
	if err != nil {
		return false
	}
	defer db.Close()

	var version string
	return db.QueryRow("SELECT spatialite_version()").Scan(&version) == nil
})
