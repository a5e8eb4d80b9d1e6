package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/config"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/logger"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/tilecache"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/application"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/render"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/repository"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/service"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/infrastructure"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/interface/http"
	"github.com/rs/zerolog"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Build(logger.Config{
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
		SampleN:   cfg.Log.SampleN,
		Component: "spillway",
	}, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &log); err != nil {
		log.Fatal().Err(err).Msg("spillway stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *zerolog.Logger) error {
	slogger := logger.NewSlog(log)

	features, rasters, closers, err := openRepositories(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close repository")
			}
		}
	}()

	cache, err := tilecache.New(ctx, tilecache.Config{
		LRUSize:   cfg.Cache.LRUSize,
		RedisAddr: cfg.Cache.RedisAddr,
		TTL:       cfg.Cache.TTL,
	})
	if err != nil {
		return err
	}
	defer cache.Close()

	renderer, err := render.New(render.Config{
		TileSize:    cfg.Render.TileSize,
		Ramps:       cfg.Render.Ramps,
		DefaultRamp: cfg.Render.DefaultStyle,
		Fill:        cfg.Render.VectorFill,
		Stroke:      cfg.Render.VectorStroke,
	})
	if err != nil {
		return err
	}

	tiles := service.NewMapTilesService(features, slogger)
	app := application.New(
		service.NewMapStyleService(cfg.Server.PublicURL, cfg.Render.VectorFill, cfg.Render.VectorStroke, features),
		tiles,
		service.NewFeatureService(features, slogger),
		service.NewRasterService(rasters, slogger),
		service.NewRenderService(tiles, features, rasters, renderer),
		renderer,
		cache,
		slogger,
	)

	if err := seed(ctx, app, cfg.Seed, log); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	log.Info().Str("addr", listener.Addr().String()).Str("backend", cfg.Database.Backend).Msg("serving")

	return http.ServeApplication(ctx, listener, http.NewRouter(app, log), http.ServerConfig{
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}

func openRepositories(cfg config.DatabaseConfig) (repository.FeatureRepository, repository.RasterRepository, []io.Closer, error) {
	if cfg.Backend == config.BackendMemory {
		rasters, err := infrastructure.NewSqliteRasterRepository(":memory:")
		if err != nil {
			return nil, nil, nil, err
		}
		return infrastructure.NewMemoryFeatureRepository(), rasters, []io.Closer{rasters}, nil
	}

	features, err := infrastructure.NewSqliteFeatureRepository(cfg.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	rasters, err := infrastructure.NewSqliteRasterRepository(cfg.Path)
	if err != nil {
		_ = features.Close()
		return nil, nil, nil, err
	}
	return features, rasters, []io.Closer{features, rasters}, nil
}

// seed imports the configured files, creating their layers when missing.
func seed(ctx context.Context, app application.Application, cfg config.SeedConfig, log *zerolog.Logger) error {
	layers, err := cfg.Parse()
	if err != nil {
		return err
	}

	for _, l := range layers {
		_, err := app.CreateLayer(ctx, entities.Layer{Name: l.Name, SRID: l.SRID})
		if err != nil && !errors.Is(err, entities.ErrInvalid) {
			return fmt.Errorf("failed to create seed layer %s: %w", l.Name, err)
		}

		n, err := app.ImportFeatures(ctx, l.Name, l.Path)
		if err != nil {
			return fmt.Errorf("failed to seed layer %s from %s: %w", l.Name, l.Path, err)
		}
		log.Info().Str("layer", l.Name).Str("path", l.Path).Int("features", n).Msg("layer seeded")
	}
	return nil
}
