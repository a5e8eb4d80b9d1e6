package http

import (
	"bytes"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/application"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/raster"
	"github.com/rs/zerolog"
	"net/http"
	"strconv"
	"time"
)

// rasterBody is the JSON form of a raster: its metadata and a row major
// array with null for nodata cells.
type rasterBody struct {
	entities.Raster
	Data [][]*float64 `json:"data"`
}

type rasterInput struct {
	Name   string          `json:"name"`
	SRID   int             `json:"srid"`
	Affine entities.Affine `json:"affine"`
	NoData *float64        `json:"nodata"`
	Event  time.Time       `json:"event"`
	Data   [][]float64     `json:"data"`
}

func RasterRoute(r chi.Router, app application.Application, log *zerolog.Logger) {
	r.Get("/rasters", func(w http.ResponseWriter, req *http.Request) {
		periods, ok, err := application.ParsePeriodsParams(req.URL.Query())
		if err != nil {
			writeError(w, req, log, err)
			return
		}
		if ok {
			values, err := app.Periods(req.Context(), periods)
			if err != nil {
				writeError(w, req, log, err)
				return
			}
			writeJSON(w, http.StatusOK, values)
			return
		}

		rasters, err := app.Rasters(req.Context())
		if err != nil {
			writeError(w, req, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rasters)
	})

	r.Post("/rasters", func(w http.ResponseWriter, req *http.Request) {
		var in rasterInput
		if err := decodeJSON(w, req, &in); err != nil {
			writeError(w, req, log, err)
			return
		}

		newRaster, err := in.toRaster()
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		id, err := app.AddRaster(req.Context(), newRaster)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		w.Header().Set("Location", "/rasters/"+strconv.FormatInt(id, 10))
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	})

	r.Get("/rasters/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, format := splitFormat(chi.URLParam(req, "id"))
		params, err := application.ParseRasterParams(id, format, req.URL.Query())
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		classes, ok, err := application.ParseClassesParams(req.URL.Query())
		if err != nil {
			writeError(w, req, log, err)
			return
		}
		if ok {
			breaks, err := app.RasterClasses(req.Context(), params.ID, classes)
			if err != nil {
				writeError(w, req, log, err)
				return
			}
			writeJSON(w, http.StatusOK, breaks)
			return
		}

		result, err := app.GetRaster(req.Context(), params)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		if result.Value != nil {
			writeJSON(w, http.StatusOK, map[string]float64{"value": *result.Value})
			return
		}
		if params.Format.Format == entities.FormatJSON && !params.Format.Zipped {
			writeJSON(w, http.StatusOK, rasterBody{Raster: result.Raster, Data: raster.Rows(result.Raster)})
			return
		}

		var buf bytes.Buffer
		if err := app.EncodeRaster(&buf, result.Raster, params.Format); err != nil {
			writeError(w, req, log, err)
			return
		}
		if params.Format.Zipped {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"raster-%d.%s\"", params.ID, params.Format.Extension()))
		}
		writeBody(w, http.StatusOK, params.Format.ContentType(), buf.Bytes())
	})
}

func (in rasterInput) toRaster() (entities.Raster, error) {
	r := entities.Raster{
		Name:   in.Name,
		SRID:   in.SRID,
		Affine: in.Affine,
		NoData: in.NoData,
		Event:  in.Event,
		Height: len(in.Data),
	}
	if r.Height > 0 {
		r.Width = len(in.Data[0])
	}

	r.Data = make([]float64, 0, r.Width*r.Height)
	for i, row := range in.Data {
		if len(row) != r.Width {
			return entities.Raster{}, entities.NewValidationError("data", fmt.Sprintf("row %d has %d values, expected %d", i, len(row), r.Width))
		}
		r.Data = append(r.Data, row...)
	}
	return r, nil
}
