package handler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizedKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"photos/cat.jpg", "photos/resized-cat.jpg"},
		{"img/a.jpg", "img/resized-a.jpg"},
		{"a.jpg", "resized-a.jpg"},
		{"deep/nested/dir/x.png", "deep/nested/dir/resized-x.png"},
		{"odd//double/y.gif", "odd/double/resized-y.gif"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ResizedKey(tt.key, DefaultPrefix), tt.key)
	}
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("photos/resized-cat.jpg", DefaultPrefix))
	assert.True(t, HasPrefix("resized-cat.jpg", DefaultPrefix))
	assert.False(t, HasPrefix("resized-photos/cat.jpg", DefaultPrefix))
	assert.False(t, HasPrefix("photos/cat-resized-.jpg", DefaultPrefix))
}

func TestDerivePaths(t *testing.T) {
	root := t.TempDir()

	paths, err := DerivePaths("photos/cat.jpg", DefaultPrefix, root)
	require.NoError(t, err)

	assert.Equal(t, PathSet{
		SourceKey:    "photos/cat.jpg",
		ResizedKey:   "photos/resized-cat.jpg",
		LocalSource:  filepath.Join(root, "photos", "cat.jpg"),
		LocalResized: filepath.Join(root, "photos", "resized-cat.jpg"),
	}, paths)
	assert.Equal(t, filepath.Dir(paths.LocalSource), filepath.Dir(paths.LocalResized))

	again, err := DerivePaths("photos/cat.jpg", DefaultPrefix, root)
	require.NoError(t, err)
	assert.Equal(t, paths, again)
}

func TestDerivePathsRejectsEscapes(t *testing.T) {
	root := t.TempDir()

	for _, key := range []string{"../etc/passwd.jpg", "a/../../b.jpg", ".."} {
		_, err := DerivePaths(key, DefaultPrefix, root)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}

	paths, err := DerivePaths("a/../b.jpg", DefaultPrefix, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.jpg"), paths.LocalSource)
}
