package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindResultFilesSortedRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "z_last.json", `[]`)
	writeFile(t, dir, "sub/nested.json", `[]`)
	writeFile(t, dir, "a_first.json", `[]`)
	writeFile(t, dir, "notes.txt", "ignored")

	files, err := FindResultFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, filepath.Join(dir, "a_first.json"), files[0])
	assert.Equal(t, filepath.Join(dir, "sub/nested.json"), files[1])
	assert.Equal(t, filepath.Join(dir, "z_last.json"), files[2])
}

func TestFindResultFilesMissingDirectory(t *testing.T) {
	_, err := FindResultFiles(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestFindResultFilesEmptyDirectory(t *testing.T) {
	files, err := FindResultFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}
