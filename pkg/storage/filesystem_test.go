package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	size, err := store.SaveStream("app-1/resume.pdf", strings.NewReader("%PDF-1.4"), 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
	assert.True(t, store.Exists("app-1/resume.pdf"))

	f, err := store.Open("app-1/resume.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, store.Delete("app-1/resume.pdf"))
	assert.False(t, store.Exists("app-1/resume.pdf"))
	require.NoError(t, store.Delete("app-1/resume.pdf"))
}

func TestLocalStorageRejectsOversizedStream(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("big.bin", strings.NewReader(strings.Repeat("a", 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, store.Exists("big.bin"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("../escape.txt", strings.NewReader("x"), 0)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Open("/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
