package http

import (
	"encoding/json"
	"errors"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/logger"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"github.com/rs/zerolog"
	"net/http"
)

type errorBody struct {
	Detail string              `json:"detail"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, entities.ErrUnsupportedFormat):
		return http.StatusNotAcceptable
	case errors.Is(err, entities.ErrNotFound), errors.Is(err, entities.ErrOutsideExtent):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with a JSON error body whatever format was requested.
func writeError(w http.ResponseWriter, req *http.Request, log *zerolog.Logger, err error) {
	status := statusOf(err)
	body := errorBody{Detail: err.Error()}

	var verr *entities.ValidationError
	if errors.As(err, &verr) {
		body.Detail = "invalid request"
		body.Errors = verr.Fields
	}
	if status == http.StatusInternalServerError {
		logger.FromContext(req.Context(), log).Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
		body.Detail = http.StatusText(status)
	}

	w.Header().Del("Content-Encoding")
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, status, "application/json", data)
}

func writeBody(w http.ResponseWriter, status int, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return entities.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}
