package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/inbucket/courier/pkg/message/search"
	"github.com/inbucket/courier/pkg/rest/model"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes limits JSON request bodies.  Attachments travel base64 encoded inside them.
const maxBodyBytes = 32 << 20

// RenderJSON sets the correct HTTP headers for JSON, then writes the specified data (typically
// a struct) encoded in JSON.
func RenderJSON(w http.ResponseWriter, data any) error {
	return RenderJSONStatus(w, http.StatusOK, data)
}

// RenderJSONStatus is RenderJSON with an explicit status code.
func RenderJSONStatus(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Expires", "-1")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	return enc.Encode(data)
}

// DecodeJSON decodes the request body into v.  Malformed bodies are reported as a validation
// failure of the "body" field.
func DecodeJSON(req *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return validation.Fieldf(typeErr.Field, "%s must be a %s", typeErr.Field, typeErr.Type)
		}
		return validation.Fieldf("body", "invalid JSON body: %v", err)
	}
	return nil
}

// StatusOf maps an error to the HTTP status code reported to clients.
func StatusOf(err error) int {
	var verr validation.Error
	var serr *search.SyntaxError
	switch {
	case errors.Is(err, storage.ErrNotExist):
		return http.StatusNotFound
	case errors.As(err, &verr), errors.As(err, &serr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// RenderError writes err as a JSON error body, returning the status code used.  Internal
// failures are not detailed to the client.
func RenderError(w http.ResponseWriter, err error) int {
	status := StatusOf(err)
	var fields map[string]string
	msg := err.Error()
	var verr validation.Error
	switch {
	case status == http.StatusInternalServerError:
		msg = http.StatusText(status)
	case errors.As(err, &verr):
		fields = verr
		msg = "validation failed"
	}
	renderStatus(w, status, msg, fields)
	return status
}

func renderStatus(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	if err := RenderJSONStatus(w, status, &model.JSONErrorV1{Error: msg, Fields: fields}); err != nil {
		log.Debug().Str("module", "web").Err(err).Msg("Failed to write error response")
	}
}
