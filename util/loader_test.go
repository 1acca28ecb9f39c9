package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadImageFiles verifies directory ordering, extension filtering and
// mixed file arguments.
//
// @example
// go test -v -run TestLoadImageFiles
func TestLoadImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-10.jpg", "frame-2.png", "b.webp", "a.JPG", "notes.txt", "frame-x.bmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o700))

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, img := range images {
		names = append(names, filepath.Base(img.Path))
		assert.Equal(t, filepath.Base(img.Path), string(img.Data))
	}
	assert.Equal(t, []string{"frame-2.png", "frame-10.jpg", "a.JPG", "b.webp", "frame-x.bmp"}, names)
	assert.Equal(t, 2, images[0].Frame)
	assert.Equal(t, -1, images[2].Frame)

	single := filepath.Join(dir, "b.webp")
	mixed, err := LoadImageFiles(single, dir)
	require.NoError(t, err)
	require.Len(t, mixed, 6)
	assert.Equal(t, single, mixed[0].Path)

	_, err = LoadImageFiles(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
