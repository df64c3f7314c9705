package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/openconf/regdesk/auth"
)

type contextKey int

const identityKey contextKey = iota

const (
	roleParticipant = auth.RoleParticipant
	roleAdmin       = auth.RoleAdmin
	roleDeveloper   = auth.RoleDeveloper
)

// requireAuth resolves the session cookie and rejects unauthenticated
// requests with 401. The identity lands on the request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.sessions.FromRequest(r.Context(), r)
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		if id == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole is requireAuth plus an exact role check. An authenticated
// caller holding the wrong role gets 403, not 401.
func (a *API) requireRole(allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identityFromContext(r.Context())
			if !id.HasRole(allowed...) {
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// requireDeveloper admits either a session with the developer role or a
// request carrying the access proxy's identity header with an email on
// the configured allowlist. The header path exists so operators can
// reach the dev endpoints before any account exists.
func (a *API) requireDeveloper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.sessions.FromRequest(r.Context(), r)
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		if id != nil && id.HasRole(auth.RoleDeveloper) {
			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		if a.accessHeaderAllowed(r) {
			next.ServeHTTP(w, r)
			return
		}
		if id != nil {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		writeError(w, http.StatusUnauthorized, "authentication required")
	})
}

func (a *API) accessHeaderAllowed(r *http.Request) bool {
	email := strings.ToLower(strings.TrimSpace(r.Header.Get(a.cfg.AccessHeader)))
	if email == "" {
		return false
	}
	for _, allowed := range a.cfg.DeveloperEmails {
		if email == allowed {
			return true
		}
	}
	return false
}

func identityFromContext(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey).(*auth.Identity)
	return id
}
