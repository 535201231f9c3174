package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t2bot/iadrive/common"
)

func writeFile(t *testing.T, root string, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("contents of "+rel), 0o644))
}

func TestEnumerateDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt")
	writeFile(t, root, "sub/b.PDF")
	writeFile(t, root, "sub/deep/c.mp3")
	writeFile(t, root, "sub/incomplete.mp4.part")

	set, err := Enumerate(root, "abc123", common.KindDriveFolder)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "sub/b.PDF", "sub/deep/c.mp3"}, set.SortedPaths())
	assert.Equal(t, []string{"mp3", "pdf", "txt"}, set.Extensions())
	assert.Equal(t, 2, set.FolderCount())
	assert.Equal(t, uint64(len("contents of a.txt")), set.Files["a.txt"].SizeBytes)
	assert.NoError(t, set.RequireFiles())
}

func TestEnumerateSingleFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "only.jpg")

	set, err := Enumerate(filepath.Join(root, "only.jpg"), "abc123", common.KindDriveFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"only.jpg"}, set.SortedPaths())
	assert.Equal(t, 0, set.FolderCount())
}

func TestEnumerateEmpty(t *testing.T) {
	root := t.TempDir()
	set, err := Enumerate(root, "abc123", common.KindDriveFolder)
	require.NoError(t, err)
	assert.True(t, set.IsEmpty())
	assert.ErrorIs(t, set.RequireFiles(), common.ErrNoContent)
}

func TestCommonDir(t *testing.T) {
	set := &ContentSet{Files: map[string]FileEntry{
		"album/one.flac": {},
		"album/two.flac": {},
	}}
	assert.Equal(t, "album", set.CommonDir())

	set = &ContentSet{Files: map[string]FileEntry{
		"album/one.flac": {},
		"other/two.flac": {},
	}}
	assert.Equal(t, "", set.CommonDir())

	set = &ContentSet{Files: map[string]FileEntry{
		"root.txt":       {},
		"album/one.flac": {},
	}}
	assert.Equal(t, "", set.CommonDir())
}
