package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "/uploads/")
	require.NoError(t, err)

	ref, err := store.Save("items", ".jpg", []byte("data"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/items/"))
	assert.True(t, strings.HasSuffix(ref, ".jpg"))
	assert.True(t, store.Exists(ref))

	content, err := os.ReadFile(filepath.Join(dir, "items", filepath.Base(ref)))
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))

	require.NoError(t, store.Delete(ref))
	assert.False(t, store.Exists(ref))
	require.NoError(t, store.Delete(ref), "deleting a missing file is idempotent")
}

func TestLocalStorageRejectsForeignReferences(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	for _, ref := range []string{"/etc/passwd", "/uploads/../secret", "https://example.com/a.jpg"} {
		err := store.Delete(ref)
		require.Error(t, err, ref)
		assert.True(t, errors.Is(err, ErrForeignReference), ref)
	}
}

func TestLocalStorageUniqueNames(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	a, err := store.Save("profiles", ".jpg", []byte("a"))
	require.NoError(t, err)
	b, err := store.Save("profiles", ".jpg", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
