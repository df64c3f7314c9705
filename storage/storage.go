// Package storage defines the repository abstraction over the
// platform's relational data: user accounts, sessions, registrations,
// payments, submissions and news. Backends live in subpackages
// (memory, bbolt, postgres) and must satisfy the same contract.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint, such as a user's email.
var ErrDuplicate = errors.New("duplicate record")

// Repository bundles the per-entity stores. All coordination happens in
// the backing store; the repository holds no cross-request state.
type Repository interface {
	Users() UserStore
	Sessions() SessionStore
	Registrations() RegistrationStore
	Payments() PaymentStore
	Submissions() SubmissionStore
	News() NewsStore
	Close() error
}

// UserStore persists user accounts.
type UserStore interface {
	// Create inserts a new user. Returns ErrDuplicate if the email is
	// already taken.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// List returns all users, newest first.
	List(ctx context.Context) ([]User, error)
	// Delete removes a user by id. Deleting an absent id is not an
	// error; registration compensation relies on that.
	Delete(ctx context.Context, id string) error
}

// SessionStore persists login sessions. Token uniqueness is enforced by
// the store's primary-key constraint, not by application logic.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	// GetByToken returns the session for a token, or ErrNotFound. It
	// does not interpret expiry; that is the resolver's job.
	GetByToken(ctx context.Context, token string) (*Session, error)
	// Delete removes a session by token. Deleting an absent token is
	// not an error.
	Delete(ctx context.Context, token string) error
}

// RegistrationStore persists conference registrations.
type RegistrationStore interface {
	Create(ctx context.Context, r *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByUserID(ctx context.Context, userID string) (*Registration, error)
	// List returns all registrations with their payment, newest first.
	List(ctx context.Context) ([]RegistrationWithPayment, error)
	Count(ctx context.Context) (int, error)
	// CountConfirmed counts registrations with a confirmed payment.
	CountConfirmed(ctx context.Context) (int, error)
	// Delete removes a registration by id. Deleting an absent id is
	// not an error.
	Delete(ctx context.Context, id string) error
}

// PaymentStore persists payments and their review lifecycle.
type PaymentStore interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetByRegistrationID(ctx context.Context, registrationID string) (*Payment, error)
	Count(ctx context.Context) (int, error)
	// SetReceipt records an uploaded receipt and moves the payment to
	// StatusUnderReview.
	SetReceipt(ctx context.Context, id, receiptPath, receiptName string) error
	// SetStatus moves the payment to the given status, recording the
	// acting admin and an optional rejection reason.
	SetStatus(ctx context.Context, id, status, reason, confirmedBy string) error
}

// SubmissionStore persists participant file submissions.
type SubmissionStore interface {
	Create(ctx context.Context, s *Submission) error
	ListByRegistrationID(ctx context.Context, registrationID string) ([]Submission, error)
	// ListAll returns every submission with the owning participant's
	// name and email, newest first.
	ListAll(ctx context.Context) ([]SubmissionWithParticipant, error)
}

// NewsStore persists tri-lingual news items.
type NewsStore interface {
	Create(ctx context.Context, n *NewsItem) error
	Update(ctx context.Context, n *NewsItem) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*NewsItem, error)
	// ListAll returns every item including unpublished, newest first.
	ListAll(ctx context.Context) ([]NewsItem, error)
	// ListPublished returns published items, newest first.
	ListPublished(ctx context.Context) ([]NewsItem, error)
}
