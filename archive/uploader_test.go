package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/config"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/fileset"
	"github.com/t2bot/iadrive/metadata"
)

type fakeStorage struct {
	existing map[string]bool
	failKeys map[string]bool
	puts     []string // keys in the order they were attempted
	meta     map[string][]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		existing: make(map[string]bool),
		failKeys: make(map[string]bool),
	}
}

func (f *fakeStorage) Exists(_ context.Context, identifier string) (bool, error) {
	return f.existing[identifier], nil
}

func (f *fakeStorage) PutFile(_ context.Context, identifier string, key string, _ string, headers map[string][]string) error {
	f.puts = append(f.puts, key)
	if headers != nil {
		f.meta = headers
	}
	if f.failKeys[key] {
		return assert.AnError
	}
	f.existing[identifier] = true
	return nil
}

func testCtx() rcontext.RequestContext {
	return rcontext.Initial(&config.Config{})
}

func makeSet(rels ...string) *fileset.ContentSet {
	set := &fileset.ContentSet{ContentID: "abc", Kind: common.KindDriveFolder, Files: make(map[string]fileset.FileEntry)}
	for _, rel := range rels {
		set.Files[rel] = fileset.FileEntry{RelativePath: rel, AbsolutePath: "/downloads/" + rel, SizeBytes: 10}
	}
	return set
}

func testMetadata() *metadata.ArchiveMetadata {
	return &metadata.ArchiveMetadata{Title: "test", Mediatype: "data", Collection: "opensource_media"}
}

func TestBuildUploadMapPreserved(t *testing.T) {
	set := makeSet("a/x.txt", "b/x.txt", "top.txt")
	mapping, order := BuildUploadMap(set, false)
	assert.Equal(t, []string{"a/x.txt", "b/x.txt", "top.txt"}, order)
	assert.Equal(t, "a/x.txt", mapping["a/x.txt"])
	assert.Equal(t, "b/x.txt", mapping["b/x.txt"])
	assert.Equal(t, "top.txt", mapping["top.txt"])
}

func TestBuildUploadMapFlatDeduplicates(t *testing.T) {
	set := makeSet("a/x.txt", "b/x.txt", "c/x.txt", "d/y.txt")
	mapping, _ := BuildUploadMap(set, true)
	assert.Equal(t, "x.txt", mapping["a/x.txt"])
	assert.Equal(t, "x_1.txt", mapping["b/x.txt"])
	assert.Equal(t, "x_2.txt", mapping["c/x.txt"])
	assert.Equal(t, "y.txt", mapping["d/y.txt"])
}

func TestBuildUploadMapSkipsPartials(t *testing.T) {
	set := makeSet("a/x.txt", "a/video.mp4.part")
	mapping, order := BuildUploadMap(set, false)
	assert.Equal(t, []string{"a/x.txt"}, order)
	assert.Len(t, mapping, 1)
}

// A zero-configuration uploader must keep folder paths intact; flattening (and
// its _N collision suffixes) is strictly opt-in.
func TestUploadDefaultPreservesFolders(t *testing.T) {
	store := newFakeStorage()
	u := &Uploader{Store: store}

	res, err := u.Upload(testCtx(), makeSet("album/x.txt", "other/x.txt"), "drive-abc", testMetadata())
	require.NoError(t, err)
	assert.Equal(t, []string{"album/x.txt", "other/x.txt"}, store.puts)
	assert.Equal(t, "album/x.txt", res.PerFile["album/x.txt"].Key)
	assert.Equal(t, "other/x.txt", res.PerFile["other/x.txt"].Key)
}

func TestUploadSuccess(t *testing.T) {
	store := newFakeStorage()
	u := &Uploader{Store: store}

	res, err := u.Upload(testCtx(), makeSet("a/x.txt", "b/y.txt"), "drive-abc", testMetadata())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x.txt", "b/y.txt"}, store.puts)
	assert.True(t, res.PerFile["a/x.txt"].Uploaded)
	assert.True(t, res.PerFile["b/y.txt"].Uploaded)
	assert.Contains(t, store.meta, "x-archive-meta-title")
}

func TestUploadPartialFailure(t *testing.T) {
	store := newFakeStorage()
	store.failKeys["two.txt"] = true
	u := &Uploader{Store: store}

	set := makeSet("one.txt", "two.txt", "three.txt")
	res, err := u.Upload(testCtx(), set, "drive-abc", testMetadata())

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPartialUpload)

	// All three must have been attempted despite the failure in the middle.
	assert.Len(t, store.puts, 3)
	assert.True(t, res.PerFile["one.txt"].Uploaded)
	assert.False(t, res.PerFile["two.txt"].Uploaded)
	assert.NotEmpty(t, res.PerFile["two.txt"].Error)
	assert.True(t, res.PerFile["three.txt"].Uploaded)
}

func TestUploadIdempotentSkip(t *testing.T) {
	store := newFakeStorage()
	u := &Uploader{Store: store}
	set := makeSet("a/x.txt")

	res, err := u.Upload(testCtx(), set, "drive-abc", testMetadata())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Len(t, store.puts, 1)

	res, err = u.Upload(testCtx(), set, "drive-abc", testMetadata())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Len(t, store.puts, 1) // no new transfer happened
}

func TestUploadDryRun(t *testing.T) {
	store := newFakeStorage()
	u := &Uploader{Store: store, Flatten: true, DryRun: true}

	res, err := u.Upload(testCtx(), makeSet("a/x.txt", "b/x.txt"), "drive-abc", testMetadata())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Empty(t, store.puts)
	assert.Equal(t, "x.txt", res.PerFile["a/x.txt"].Key)
	assert.Equal(t, "x_1.txt", res.PerFile["b/x.txt"].Key)
}

func TestUploadEmptySet(t *testing.T) {
	store := newFakeStorage()
	u := &Uploader{Store: store}

	_, err := u.Upload(testCtx(), makeSet("only.mp4.part"), "drive-abc", testMetadata())
	assert.ErrorIs(t, err, common.ErrNoContent)
}

func TestUploadEmptyIdentifier(t *testing.T) {
	u := &Uploader{Store: newFakeStorage()}
	_, err := u.Upload(testCtx(), makeSet("a.txt"), "", testMetadata())
	assert.ErrorIs(t, err, common.ErrEmptyIdentifier)
}
