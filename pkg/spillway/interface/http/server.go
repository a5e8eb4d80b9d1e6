package http

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/application"
	"github.com/rs/zerolog"
	"net"
	"net/http"
	"time"
)

const maxBodyBytes = 64 << 20

type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// NewRouter wires every route of the service.
func NewRouter(app application.Application, log *zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogging(log))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)
	r.Use(observeRequests)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: http.StatusText(http.StatusNotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: http.StatusText(http.StatusMethodNotAllowed)})
	})

	HealthRoute(r)
	MapStyleRoute(r, app, log)
	LayerRoute(r, app, log)
	FeatureRoute(r, app, log)
	MapTileRoute(r, app, log)
	RasterRoute(r, app, log)

	return r
}

// ServeApplication serves handler on l until ctx is cancelled, then drains
// in-flight requests for at most cfg.ShutdownTimeout.
func ServeApplication(ctx context.Context, l net.Listener, handler http.Handler, cfg ServerConfig) error {
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
