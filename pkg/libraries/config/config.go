// Package config loads the service configuration from struct defaults, an
// optional YAML file and SPILLWAY_ prefixed environment variables, in that
// order of precedence.
package config

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvPrefix     = "SPILLWAY_"
	PathEnvVar    = EnvPrefix + "CONFIG"
	DefaultPath   = "spillway.yaml"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Cache    CacheConfig    `koanf:"cache"`
	Render   RenderConfig   `koanf:"render"`
	Seed     SeedConfig     `koanf:"seed"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	PublicURL       string        `koanf:"public_url" validate:"required,url"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Backend string `koanf:"backend" validate:"oneof=sqlite memory"`
	Path    string `koanf:"path" validate:"required_if=Backend sqlite"`
}

type LogConfig struct {
	Level   string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Console bool   `koanf:"console"`
	SampleN uint32 `koanf:"sample_n"`
}

type CacheConfig struct {
	LRUSize   int           `koanf:"lru_size" validate:"gte=0"`
	RedisAddr string        `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	TTL       time.Duration `koanf:"ttl" validate:"gte=0"`
}

type RenderConfig struct {
	TileSize     int                 `koanf:"tile_size" validate:"gte=16,lte=2048"`
	DefaultStyle string              `koanf:"default_style" validate:"required"`
	VectorFill   string              `koanf:"vector_fill" validate:"omitempty,hexcolor"`
	VectorStroke string              `koanf:"vector_stroke" validate:"omitempty,hexcolor"`
	Ramps        map[string][]string `koanf:"ramps" validate:"dive,min=2,dive,hexcolor"`
}

// SeedConfig lists layers imported at startup as "name:srid:path".
type SeedConfig struct {
	Layers []string `koanf:"layers"`
}

// SeedLayer is one parsed seed entry.
type SeedLayer struct {
	Name string
	SRID int
	Path string
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "0.0.0.0:8080",
			PublicURL:       "http://localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Backend: BackendSQLite,
			Path:    "spillway.sqlite",
		},
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			LRUSize: 4096,
			TTL:     time.Hour,
		},
		Render: RenderConfig{
			TileSize:     256,
			DefaultStyle: "Spectral_r",
			VectorFill:   "#3288bd",
			VectorStroke: "#08306b",
		},
	}
}

var validate = validator.New()

// Load reads the configuration. A missing file at the default path is not an
// error; a missing file named by SPILLWAY_CONFIG is.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, explicit := os.LookupEnv(PathEnvVar)
	if !explicit {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitList(k, "seed.layers"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps SPILLWAY_SERVER__PUBLIC_URL to server.public_url.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// splitList turns a comma separated string from the environment into a list.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}

	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Seed.Parse(); err != nil {
		return err
	}
	return nil
}

// Parse splits every seed entry into its parts.
func (s SeedConfig) Parse() ([]SeedLayer, error) {
	out := make([]SeedLayer, 0, len(s.Layers))
	for _, entry := range s.Layers {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid seed layer %q: want name:srid:path", entry)
		}
		srid, err := strconv.Atoi(parts[1])
		if err != nil || srid <= 0 {
			return nil, fmt.Errorf("invalid seed layer %q: bad srid %q", entry, parts[1])
		}
		out = append(out, SeedLayer{Name: parts[0], SRID: srid, Path: parts[2]})
	}
	return out, nil
}
