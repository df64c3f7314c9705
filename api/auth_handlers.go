package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/session"
	"github.com/openconf/regdesk/storage"
)

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := a.repo.Users().GetByEmail(r.Context(), email)
	if errors.Is(err, storage.ErrNotFound) {
		// Same body as a wrong password; account existence stays hidden.
		a.audit.logFailure(AuditLoginFailure, r, "unknown email")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	// The client states which portal it is logging into; an account
	// holding a different role is refused outright.
	if req.Role != "" && string(user.Role) != req.Role {
		a.audit.logFailure(AuditLoginFailure, r, "role mismatch", slog.String("user_id", user.ID))
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordSalt, user.PasswordHash) {
		a.audit.logFailure(AuditLoginFailure, r, "bad password", slog.String("user_id", user.ID))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sess, err := a.sessions.Create(r.Context(), user.ID, r)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	a.audit.logEvent(AuditLoginSuccess, r, user.ID)
	w.Header().Set("Set-Cookie", session.Cookie(sess.Token))
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, User: user.Identity()})
}

// Logout handles POST /auth/logout. It never fails: the session row is
// removed when the cookie names one, and the expired cookie goes out
// either way.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token := session.TokenFromRequest(r); token != "" {
		if err := a.sessions.Invalidate(r.Context(), token); err != nil {
			a.audit.logger.ErrorContext(r.Context(), "logout session delete", "error", err)
		} else {
			a.audit.log(AuditLogout, r)
		}
	}
	w.Header().Set("Set-Cookie", session.ExpiredCookie())
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Me handles GET /auth/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	id, err := a.sessions.FromRequest(r.Context(), r)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	if id == nil {
		writeJSON(w, http.StatusUnauthorized, SuccessResponse{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, User: id})
}
