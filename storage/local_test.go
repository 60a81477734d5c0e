package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	handle := NewHandle("attachments", "photo.png", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(handle, "attachments/2026/03/04/"))
	assert.True(t, strings.HasSuffix(handle, "_photo.png"))

	require.NoError(t, store.Put(ctx, handle, strings.NewReader("first"), "image/png"))
	require.NoError(t, store.Put(ctx, handle, strings.NewReader("second"), "image/png"))

	rc, err := store.Get(ctx, handle)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "second", string(data), "last writer wins")

	require.NoError(t, store.Delete(ctx, handle))
	_, err = store.Get(ctx, handle)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.NoError(t, store.Delete(ctx, handle))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, h := range []string{"../etc/passwd", "/abs/path", "", "a/../../b"} {
		_, err := store.Get(context.Background(), h)
		assert.ErrorIs(t, err, ErrInvalidHandle, h)
	}
}

func TestNewHandleSanitizesName(t *testing.T) {
	h := NewHandle("avatars", `..\..\evil name.jpg`, time.Now())
	assert.NotContains(t, h, "..\\")
	assert.True(t, strings.HasSuffix(h, "_evil_name.jpg"))
	_, err := cleanHandle(h)
	assert.NoError(t, err)
}
