package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)

	// Idempotent.
	require.NoError(t, EnsureDir(dir))

	require.Error(t, EnsureDir(""))
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")

	require.NoError(t, WriteAtomic(path, []byte("first")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, WriteAtomic(path, []byte("second")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
