package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/logger"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/application"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/rs/zerolog"
	"net/http"
	"strconv"
	"strings"
)

func MapTileRoute(r chi.Router, app application.Application, log *zerolog.Logger) {
	r.Get("/vectiles/{layer}/{z}/{x}/{y}", func(w http.ResponseWriter, req *http.Request) {
		layer := chi.URLParam(req, "layer")
		y, format := splitFormat(chi.URLParam(req, "y"))

		params, err := application.ParseTileParams(
			layer, chi.URLParam(req, "z"), chi.URLParam(req, "x"), y, format, req.URL.Query(), entities.FormatGeoJSON,
		)
		if err != nil {
			writeError(w, req, log, err)
			return
		}
		params.Gzip = acceptsGzip(req)

		tile, err := app.GetVectorTile(logger.WithLayer(req.Context(), layer), params)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		writeTile(w, tile)
	})

	r.Get("/maptiles/{id}/{z}/{x}/{y}", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			writeError(w, req, log, entities.NewValidationError("id", "must be an integer"))
			return
		}
		y, format := splitFormat(chi.URLParam(req, "y"))

		params, err := application.ParseTileParams(
			chi.URLParam(req, "id"), chi.URLParam(req, "z"), chi.URLParam(req, "x"), y, format, req.URL.Query(), entities.FormatPNG,
		)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		tile, err := app.GetMapTile(req.Context(), id, params)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		writeTile(w, tile)
	})
}

func writeTile(w http.ResponseWriter, tile application.Tile) {
	w.Header().Add("Vary", "Accept-Encoding")
	if tile.Gzipped {
		w.Header().Set("Content-Encoding", "gzip")
	}
	writeBody(w, http.StatusOK, tile.ContentType, tile.Data)
}

func acceptsGzip(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept-Encoding"), "gzip")
}

// splitFormat separates a path segment like "347.pbf" or "3.tif.zip" into
// its value and format suffix.
func splitFormat(segment string) (string, string) {
	value, format, _ := strings.Cut(segment, ".")
	return value, format
}
