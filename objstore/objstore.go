// Package objstore stores uploaded files (payment receipts, membership
// proofs, abstracts) under opaque keys. Keys are produced by the auth
// package's FileKey and carry the ownership prefix the download gate
// checks; this package treats them as plain strings.
package objstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists at the given key.
var ErrNotFound = errors.New("objstore: object not found")

// Object is a stored file opened for reading. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store is the object storage contract used by the upload and download
// handlers.
type Store interface {
	// Put writes the object at key, replacing any existing content.
	Put(ctx context.Context, key, contentType string, body io.Reader) error

	// Get opens the object at key or returns ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Delete removes the object at key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error
}
