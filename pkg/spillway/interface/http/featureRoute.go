package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/logger"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/application"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/service"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

func FeatureRoute(r chi.Router, app application.Application, log *zerolog.Logger) {
	list := func(w http.ResponseWriter, req *http.Request) {
		layer := chi.URLParam(req, "layer")
		params, err := application.ParseFeatureListParams(layer, chi.URLParam(req, "format"), req.URL.Query())
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		page, err := app.ListFeatures(logger.WithLayer(req.Context(), layer), params)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		if !isGeoJSON(params.Format) {
			writeEncodedFeatures(w, req, app, log, layer, page.Features, page.SRID, params.Format)
			return
		}

		fc := geojson.NewFeatureCollection()
		for _, f := range page.Features {
			fc.Append(f.GeoJSON())
		}
		fc.ExtraMembers = geojson.Properties{
			"count":    page.Count,
			"next":     pageLink(req.URL, page, page.HasNext(), page.Page+1),
			"previous": pageLink(req.URL, page, page.HasPrevious(), page.Page-1),
			"crs":      entities.NewNamedCRS(page.SRID),
		}

		data, err := json.Marshal(fc)
		if err != nil {
			writeError(w, req, log, fmt.Errorf("failed to marshal feature collection: %w", err))
			return
		}
		writeBody(w, http.StatusOK, params.Format.ContentType(), data)
	}
	r.Get("/layers/{layer}/features", list)
	r.Get("/layers/{layer}/features.{format}", list)

	r.Post("/layers/{layer}/features", func(w http.ResponseWriter, req *http.Request) {
		layer := chi.URLParam(req, "layer")
		features, err := decodeFeatures(w, req)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		srid := 0
		if v := req.URL.Query().Get("srid"); v != "" {
			if srid, err = strconv.Atoi(v); err != nil {
				writeError(w, req, log, entities.NewValidationError("srid", "must be an integer"))
				return
			}
		}

		ids, err := app.AddFeatures(logger.WithLayer(req.Context(), layer), layer, features, srid)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string][]int64{"ids": ids})
	})

	r.Get("/layers/{layer}/features/{id}", func(w http.ResponseWriter, req *http.Request) {
		layer := chi.URLParam(req, "layer")
		id, format := splitFormat(chi.URLParam(req, "id"))
		params, err := application.ParseFeatureParams(layer, id, format, req.URL.Query())
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		f, srid, err := app.GetFeature(logger.WithLayer(req.Context(), layer), params)
		if err != nil {
			writeError(w, req, log, err)
			return
		}

		if !isGeoJSON(params.Format) {
			writeEncodedFeatures(w, req, app, log, layer, []entities.Feature{f}, srid, params.Format)
			return
		}

		data, err := withMembers(f.GeoJSON(), map[string]any{"crs": entities.NewNamedCRS(srid)})
		if err != nil {
			writeError(w, req, log, err)
			return
		}
		writeBody(w, http.StatusOK, params.Format.ContentType(), data)
	})
}

func isGeoJSON(f entities.OutputFormat) bool {
	return !f.Zipped && (f.Format == entities.FormatGeoJSON || f.Format == entities.FormatJSON)
}

func writeEncodedFeatures(w http.ResponseWriter, req *http.Request, app application.Application, log *zerolog.Logger, name string, features []entities.Feature, srid int, format entities.OutputFormat) {
	var buf bytes.Buffer
	if err := app.EncodeFeatures(&buf, name, features, srid, format); err != nil {
		writeError(w, req, log, err)
		return
	}
	if format.Format == entities.FormatKMZ {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".kmz"))
	}
	writeBody(w, http.StatusOK, format.ContentType(), buf.Bytes())
}

// pageLink is the URL of another page of the listing, or nil.
func pageLink(u *url.URL, page service.FeaturePage, ok bool, n int) *string {
	if !ok {
		return nil
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	q.Set("page_size", strconv.Itoa(page.PageSize))
	link := u.Path + "?" + q.Encode()
	return &link
}

// decodeFeatures reads a GeoJSON Feature or FeatureCollection body.
func decodeFeatures(w http.ResponseWriter, req *http.Request) ([]*geojson.Feature, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		return nil, entities.NewValidationError("body", "failed to read body")
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, entities.NewValidationError("body", "malformed JSON: "+err.Error())
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, entities.NewValidationError("body", "invalid feature collection: "+err.Error())
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, entities.NewValidationError("body", "invalid feature: "+err.Error())
		}
		return []*geojson.Feature{f}, nil
	default:
		return nil, entities.NewValidationError("type", "expected Feature or FeatureCollection")
	}
}

// withMembers marshals v and adds top level members to the resulting object.
func withMembers(v any, members map[string]any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, fmt.Errorf("failed to extend response: %w", err)
	}
	for k, m := range members {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal member %s: %w", k, err)
		}
		object[k] = raw
	}
	return json.Marshal(object)
}
