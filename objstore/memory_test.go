package objstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.Get(ctx, "payments/u_example_org/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	key := "payments/u_example_org/receipt.pdf"
	require.NoError(t, store.Put(ctx, key, "application/pdf", strings.NewReader("%PDF-1.4 stub")))

	obj, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer obj.Body.Close()
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, int64(13), obj.Size)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 stub", string(data))

	// Put overwrites in place.
	require.NoError(t, store.Put(ctx, key, "image/png", strings.NewReader("png")))
	obj, err = store.Get(ctx, key)
	require.NoError(t, err)
	obj.Body.Close()
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is fine.
	require.NoError(t, store.Delete(ctx, key))
}
