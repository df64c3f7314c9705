package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openconf/regdesk/storage"
)

// Request body limits. Uploads are capped separately in the multipart
// handlers.
const (
	maxJSONBodySize   = 64 << 10
	maxUploadBodySize = 20 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

// writeStoreError maps repository failures. Details of infrastructure
// faults stay out of the response body.
func (a *API) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate record")
	default:
		a.audit.logger.ErrorContext(r.Context(), "storage error", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads and decodes a size-limited JSON request body. On
// failure it writes a 400 and returns ok=false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return v, false
	}
	return v, true
}
