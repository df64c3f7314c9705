// Package session issues, resolves and invalidates login sessions and
// owns the session cookie wire format. Sessions are rows in the
// relational store; this package holds no state of its own.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/config"
	"github.com/openconf/regdesk/storage"
)

// Manager creates and resolves sessions against the repository.
type Manager struct {
	repo storage.Repository
	ttl  time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// NewManager returns a Manager with the fixed session TTL.
func NewManager(repo storage.Repository) *Manager {
	return &Manager{
		repo: repo,
		ttl:  config.SessionTTL,
		now:  time.Now,
	}
}

// Create issues a new session for the user. The token is a fresh UUID;
// expiry is now + TTL and is never extended afterwards. Client IP and
// user agent are captured as audit metadata only. Multiple concurrent
// sessions per user are permitted by design.
func (m *Manager) Create(ctx context.Context, userID string, r *http.Request) (*storage.Session, error) {
	now := m.now().UTC()
	sess := &storage.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if r != nil {
		sess.IP = clientIP(r)
		sess.UserAgent = r.UserAgent()
	}
	if err := m.repo.Sessions().Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// Resolve maps a token to an authenticated identity. It returns
// (nil, nil) for an unknown token, and for an expired one, deleting
// the expired row on the way out (lazy cleanup). Only infrastructure
// faults surface as errors.
func (m *Manager) Resolve(ctx context.Context, token string) (*auth.Identity, error) {
	sess, err := m.repo.Sessions().GetByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	// The session is valid through ExpiresAt itself and invalid
	// strictly after it.
	if m.now().After(sess.ExpiresAt) {
		if err := m.repo.Sessions().Delete(ctx, token); err != nil {
			return nil, fmt.Errorf("deleting expired session: %w", err)
		}
		return nil, nil
	}

	user, err := m.repo.Users().GetByID(ctx, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		// Orphaned session; treat like no session.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session user: %w", err)
	}
	return user.Identity(), nil
}

// FromRequest resolves the identity for an inbound request. A missing
// or garbled cookie yields (nil, nil) without touching the store. This
// is the single entry point for every protected handler.
func (m *Manager) FromRequest(ctx context.Context, r *http.Request) (*auth.Identity, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, nil
	}
	return m.Resolve(ctx, token)
}

// Invalidate deletes the session row for a token. Idempotent; deleting
// an unknown token is not an error.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	if err := m.repo.Sessions().Delete(ctx, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// TokenFromRequest extracts the session token from the request's
// cookies, or returns "".
func TokenFromRequest(r *http.Request) string {
	return ParseCookies(r.Header.Get("Cookie"))[config.SessionCookieName]
}

// clientIP returns the best-effort client address: the first
// X-Forwarded-For entry when present, otherwise the connection's
// remote host.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
