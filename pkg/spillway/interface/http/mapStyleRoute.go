package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/application"
	"github.com/rs/zerolog"
	"net/http"
)

func MapStyleRoute(r chi.Router, app application.Application, log *zerolog.Logger) {
	r.Get("/style.json", func(w http.ResponseWriter, req *http.Request) {
		style, err := app.GetMapStyle(req.Context())
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		writeBody(w, http.StatusOK, "application/json", style)
	})

	r.Get("/styles", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, app.Ramps())
	})
}
