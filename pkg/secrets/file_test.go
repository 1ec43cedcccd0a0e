package secrets

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	ctx := t.Context()

	// Empty store reads as absent, not as an error.
	token, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Set(ctx, "refresh-token-1"))

	token, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token-1", token)

	// Set replaces the previous value.
	require.NoError(t, store.Set(ctx, "refresh-token-2"))
	token, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token-2", token)

	require.NoError(t, store.Clear(ctx))
	token, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileStoreClearIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Clear(t.Context()))
	require.NoError(t, store.Clear(t.Context()))
}

func TestFileStorePermissions(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on Windows")
	}

	base := t.TempDir()
	store := NewFileStore(base)
	require.NoError(t, store.Set(t.Context(), "sensitive"))

	info, err := os.Stat(filepath.Join(base, "auth", tokenFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMemoryStoreInjectedFailures(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "tok"))

	store.SetErr = assert.AnError
	assert.Error(t, store.Set(ctx, "other"))

	// A failed Set leaves the previous value intact.
	token, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	store.ClearErr = assert.AnError
	assert.Error(t, store.Clear(ctx))
}

func TestStoreKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file", NewFileStore(t.TempDir()).Kind())
	assert.Equal(t, "memory", NewMemoryStore().Kind())
	assert.Equal(t, "keyring", NewKeyringStore().Kind())
}
