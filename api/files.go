package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/objstore"
)

// DownloadFile handles GET /files?path=... Admins and developers may
// fetch any key; participants only their own. Existence is revealed
// only after the gate passes.
func (a *API) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())

	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}

	if !auth.CanAccessFile(id, path) {
		a.audit.logFailure(AuditFileDenied, r, "ownership gate",
			slog.String("user_id", id.ID), slog.String("path", path))
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	obj, err := a.objects.Get(r.Context(), path)
	if errors.Is(err, objstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		a.audit.logger.ErrorContext(r.Context(), "object fetch", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer obj.Body.Close()

	filename := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		filename = path[i+1:]
	}
	if filename == "" {
		filename = "file"
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, obj.Body)
}
