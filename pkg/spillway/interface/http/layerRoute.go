package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/application"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/rs/zerolog"
	"net/http"
)

func LayerRoute(r chi.Router, app application.Application, log *zerolog.Logger) {
	r.Get("/layers", func(w http.ResponseWriter, req *http.Request) {
		layers, err := app.Layers(req.Context())
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		writeJSON(w, http.StatusOK, layers)
	})

	r.Post("/layers", func(w http.ResponseWriter, req *http.Request) {
		var layer entities.Layer
		if err := decodeJSON(w, req, &layer); err != nil {
			writeError(w, req, log, err)
			return
		}

		created, err := app.CreateLayer(req.Context(), layer)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		w.Header().Set("Location", "/layers/"+created.Name+"/features")
		writeJSON(w, http.StatusCreated, created)
	})
}
