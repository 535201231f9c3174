package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/config"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/metadata/dates"
	"github.com/t2bot/iadrive/sources"
)

type fakeSource struct {
	name  string
	match string
	files map[string]string // relative path -> contents
	kind  string
	id    string
	err   error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Matches(url string) bool { return url == s.match }

func (s *fakeSource) Download(ctx rcontext.RequestContext, url string, destBase string) (*sources.DownloadResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	root := filepath.Join(destBase, "drive-"+s.id)
	var files []string
	for rel, contents := range s.files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, []byte(contents), 0644); err != nil {
			return nil, err
		}
		files = append(files, p)
	}
	return &sources.DownloadResult{
		Root:      root,
		Kind:      s.kind,
		ContentID: s.id,
		Title:     "Fake Download",
		Files:     files,
	}, nil
}

type fakeStore struct {
	exists bool
	puts   map[string]string // key -> identifier
}

func (s *fakeStore) Exists(ctx context.Context, identifier string) (bool, error) {
	return s.exists, nil
}

func (s *fakeStore) PutFile(ctx context.Context, identifier string, key string, localPath string, headers map[string][]string) error {
	if s.puts == nil {
		s.puts = make(map[string]string)
	}
	s.puts[key] = identifier
	return nil
}

func testRunner(src *fakeSource, store *fakeStore) *Runner {
	cfg := &config.Config{DefaultCollection: "opensource_media"}
	return &Runner{
		Config:   cfg,
		Sources:  []sources.Source{src},
		Store:    store,
		Resolver: &dates.Resolver{Extract: func(string) []time.Time { return nil }},
	}
}

func TestRunUploadsAndCleansUp(t *testing.T) {
	src := &fakeSource{
		name:  "Fake",
		match: "https://example.org/content",
		files: map[string]string{"a.txt": "hello", "sub/b.txt": "world"},
		kind:  common.KindDriveFolder,
		id:    "abc123",
	}
	store := &fakeStore{}
	r := testRunner(src, store)

	ctx := rcontext.Initial(r.Config)
	report, err := r.Run(ctx, Options{
		Url:      "https://example.org/content",
		DestBase: t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, "drive-abc123", report.Identifier)
	assert.Equal(t, "https://archive.org/details/drive-abc123", report.ItemUrl)
	assert.Equal(t, 2, report.FileCount)
	assert.False(t, report.Skipped)

	// Folder paths are preserved unless flattening was requested
	assert.Equal(t, "drive-abc123", store.puts["a.txt"])
	assert.Equal(t, "drive-abc123", store.puts["sub/b.txt"])

	// Successful upload removes the download tree
	assert.Empty(t, report.LocalRoot)
}

func TestRunFlattenOptIn(t *testing.T) {
	src := &fakeSource{
		name:  "Fake",
		match: "u",
		files: map[string]string{"a/x.txt": "one", "b/x.txt": "two"},
		kind:  common.KindDriveFolder,
		id:    "flat",
	}
	store := &fakeStore{}
	r := testRunner(src, store)

	ctx := rcontext.Initial(r.Config)
	_, err := r.Run(ctx, Options{Url: "u", DestBase: t.TempDir(), Flatten: true})
	require.NoError(t, err)
	assert.Equal(t, "drive-flat", store.puts["x.txt"])
	assert.Equal(t, "drive-flat", store.puts["x_1.txt"])
}

func TestRunKeepPreservesTree(t *testing.T) {
	src := &fakeSource{
		name:  "Fake",
		match: "u",
		files: map[string]string{"a.txt": "hello"},
		kind:  common.KindDriveFile,
		id:    "keepme",
	}
	r := testRunner(src, &fakeStore{})

	ctx := rcontext.Initial(r.Config)
	report, err := r.Run(ctx, Options{Url: "u", DestBase: t.TempDir(), Keep: true})
	require.NoError(t, err)
	require.NotEmpty(t, report.LocalRoot)
	_, err = os.Stat(report.LocalRoot)
	assert.NoError(t, err)
}

func TestRunExistingItemSkips(t *testing.T) {
	src := &fakeSource{
		name:  "Fake",
		match: "u",
		files: map[string]string{"a.txt": "hello"},
		kind:  common.KindDriveFile,
		id:    "dupe",
	}
	store := &fakeStore{exists: true}
	r := testRunner(src, store)

	ctx := rcontext.Initial(r.Config)
	report, err := r.Run(ctx, Options{Url: "u", DestBase: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, store.puts)
}

func TestRunIdentifierOverride(t *testing.T) {
	src := &fakeSource{
		name:  "Fake",
		match: "u",
		files: map[string]string{"a.txt": "hello"},
		kind:  common.KindDriveFile,
		id:    "xyz",
	}
	store := &fakeStore{}
	r := testRunner(src, store)

	ctx := rcontext.Initial(r.Config)
	report, err := r.Run(ctx, Options{Url: "u", DestBase: t.TempDir(), IdentifierOverride: "my-custom-item"})
	require.NoError(t, err)
	assert.Equal(t, "my-custom-item", report.Identifier)
	assert.Equal(t, "my-custom-item", store.puts["a.txt"])
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	src := &fakeSource{
		name:  "Fake",
		match: "u",
		files: map[string]string{"a.txt": "hello"},
		kind:  common.KindDriveFile,
		id:    "dry",
	}
	store := &fakeStore{}
	r := testRunner(src, store)

	ctx := rcontext.Initial(r.Config)
	report, err := r.Run(ctx, Options{Url: "u", DestBase: t.TempDir(), DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Empty(t, store.puts)

	// Dry runs keep the tree for inspection
	_, err = os.Stat(report.LocalRoot)
	assert.NoError(t, err)
}

func TestRunUnsupportedUrl(t *testing.T) {
	r := testRunner(&fakeSource{name: "Fake", match: "only-this"}, &fakeStore{})
	ctx := rcontext.Initial(r.Config)
	_, err := r.Run(ctx, Options{Url: "https://example.com/other", DestBase: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnsupportedUrl)
}
