package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore_Put(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalBlobStore(root)
	require.NoError(t, err)

	path, err := store.Put(context.Background(), "payment-proofs", "Receipt.PNG", []byte("png-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, "payment-proofs/"))
	assert.True(t, strings.HasSuffix(path, ".png"))

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestLocalBlobStore_PrefixCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalBlobStore(root)
	require.NoError(t, err)

	path, err := store.Put(context.Background(), "../../etc", "x.txt", []byte("x"))
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(path, ".."))
}

func TestLocalBlobStore_CancelledContext(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "p", "a.pdf", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
