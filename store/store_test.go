package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()

	_, ok := m.Get("registered")
	assert.False(t, ok)

	require.NoError(t, m.Set("registered", "true"))
	v, ok := m.Get("registered")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestFile_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "boxcar-api.io.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	_, ok := f.Get("registered")
	assert.False(t, ok)

	require.NoError(t, f.Set("registered", "true"))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, ok := reopened.Get("registered")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	assert.Equal(t, path, reopened.Path())
}

func TestFile_EmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Set("registered", "false"))
}

func TestFile_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestFile_WriteFailureKeepsPreviousValue(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "parent")
	f, err := OpenFile(filepath.Join(parent, "state.json"))
	require.NoError(t, err)

	// parent becomes a regular file, so the directory cannot be created
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0644))

	assert.Error(t, f.Set("registered", "true"))
	_, ok := f.Get("registered")
	assert.False(t, ok)
}
