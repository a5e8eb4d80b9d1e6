package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulkoehlerdev/spillway/pkg/libraries/config"
)

// chdir isolates Load from a spillway.yaml in the package directory.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, config.BackendSQLite, cfg.Database.Backend)
	assert.Equal(t, 256, cfg.Render.TileSize)
	assert.Equal(t, "Spectral_r", cfg.Render.DefaultStyle)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := chdir(t)
	yaml := []byte(`
server:
  public_url: https://tiles.example.com
database:
  backend: memory
render:
  tile_size: 512
  ramps:
    mono: ["#000000", "#ffffff"]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultPath), yaml, 0o600))

	t.Setenv("SPILLWAY_LOG__LEVEL", "debug")
	t.Setenv("SPILLWAY_SEED__LAYERS", "locations:4326:a.geojson, roads:3857:b.osm.pbf")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://tiles.example.com", cfg.Server.PublicURL)
	assert.Equal(t, config.BackendMemory, cfg.Database.Backend)
	assert.Equal(t, 512, cfg.Render.TileSize)
	assert.Equal(t, []string{"#000000", "#ffffff"}, cfg.Render.Ramps["mono"])
	assert.Equal(t, "debug", cfg.Log.Level)

	seeds, err := cfg.Seed.Parse()
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, config.SeedLayer{Name: "roads", SRID: 3857, Path: "b.osm.pbf"}, seeds[1])
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	chdir(t)
	t.Setenv(config.PathEnvVar, "does-not-exist.yaml")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t)
	t.Setenv("SPILLWAY_RENDER__TILE_SIZE", "8")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestSeedConfig_Parse(t *testing.T) {
	_, err := config.SeedConfig{Layers: []string{"missing-parts"}}.Parse()
	assert.Error(t, err)

	_, err = config.SeedConfig{Layers: []string{"a:x:path"}}.Parse()
	assert.Error(t, err)

	got, err := config.SeedConfig{Layers: []string{"a:4326:/data/c:d.geojson"}}.Parse()
	require.NoError(t, err)
	assert.Equal(t, "/data/c:d.geojson", got[0].Path)
}
