package api

import (
	"mime/multipart"
	"net/http"
	"strings"
)

// openUpload validates the multipart request and opens the named file
// field. It writes the error response itself and returns ok=false when
// the request is unusable.
func (a *API) openUpload(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported content type")
		return nil, nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
	if err := r.ParseMultipartForm(maxUploadBodySize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return nil, nil, false
	}
	file, header, err := r.FormFile(field)
	if err != nil || header.Size == 0 {
		if file != nil {
			file.Close()
		}
		writeError(w, http.StatusBadRequest, field+" required")
		return nil, nil, false
	}
	return file, header, true
}
