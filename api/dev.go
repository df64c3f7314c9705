package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/session"
	"github.com/openconf/regdesk/storage"
)

// CreateUser handles POST /dev/create-user: provisions an account with
// an explicit role, defaulting to admin.
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateUserRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	role := auth.Role(req.Role)
	if req.Role == "" {
		role = auth.RoleAdmin
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	cred, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &storage.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: cred.Hash,
		PasswordSalt: cred.Salt,
		Role:         role,
		Name:         strings.TrimSpace(req.Name),
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.repo.Users().Create(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already exists")
			return
		}
		a.writeStoreError(w, r, err)
		return
	}

	a.audit.logEvent(AuditUserCreated, r, user.ID, slog.String("role", string(role)))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Impersonate handles POST /dev/impersonate: issues a real session for
// any existing account and sets its cookie on the caller.
func (a *API) Impersonate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ImpersonateRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user ID required")
		return
	}

	user, err := a.repo.Users().GetByID(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	sess, err := a.sessions.Create(r.Context(), user.ID, r)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	a.audit.logEvent(AuditImpersonate, r, user.ID)
	w.Header().Set("Set-Cookie", session.Cookie(sess.Token))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// DevSummary handles GET /dev/summary: the user list plus registration
// and payment counters.
func (a *API) DevSummary(w http.ResponseWriter, r *http.Request) {
	users, err := a.repo.Users().List(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	regCount, err := a.repo.Registrations().Count(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	payCount, err := a.repo.Payments().Count(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	if users == nil {
		users = []storage.User{}
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		Success: true,
		Stats:   SummaryStats{Registrations: regCount, Payments: payCount},
		Users:   users,
	})
}
