package filesystem

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFileSystem(t *testing.T) {
	fs := DefaultFileSystem{}
	path := filepath.Join(t.TempDir(), "nested", "dir", "marker")

	require.NoError(t, fs.WriteFile(path, "1.2.3"))
	content, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", content)

	f, err := fs.Create(filepath.Join(filepath.Dir(path), "other", "file"))
	require.NoError(t, err)
	_, err = f.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = fs.Open(filepath.Join(filepath.Dir(path), "other", "file"))
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = fs.ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
