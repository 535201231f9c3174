// Package archive turns a content set into an archive.org item: it prepares the
// upload key mapping, checks for an existing item, and transfers every file
// before reporting which ones failed.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/t2bot/iadrive/archive/ias3"
	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/fileset"
	"github.com/t2bot/iadrive/metadata"
	"github.com/t2bot/iadrive/util"
)

// Storage is the upload collaborator. ias3.Client implements it.
type Storage interface {
	Exists(ctx context.Context, identifier string) (bool, error)
	PutFile(ctx context.Context, identifier string, key string, localPath string, headers map[string][]string) error
}

// MetadataHeaders matches ias3.MetadataHeaders; injected so tests don't need the
// wire encoding.
type MetadataHeaders func(fields map[string]interface{}) map[string][]string

type FileStatus struct {
	Key      string // upload key the file mapped to
	Uploaded bool
	Error    string
}

type Result struct {
	Identifier string
	Skipped    bool // item already existed; nothing was transferred
	DryRun     bool
	PerFile    map[string]FileStatus // keyed by relative path
}

type Uploader struct {
	Store   Storage
	Headers MetadataHeaders
	Flatten bool // discard directory structure; the zero value preserves folder paths
	DryRun  bool
}

// Upload transfers every usable file in the set. Individual failures do not
// stop the batch; if any file failed once all were attempted, the returned
// error wraps common.ErrPartialUpload.
func (u *Uploader) Upload(ctx rcontext.RequestContext, set *fileset.ContentSet, identifier string, md *metadata.ArchiveMetadata) (*Result, error) {
	if identifier == "" {
		return nil, common.ErrEmptyIdentifier
	}

	mapping, order := BuildUploadMap(set, u.Flatten)
	if len(order) == 0 {
		return nil, common.ErrNoContent
	}

	result := &Result{
		Identifier: identifier,
		DryRun:     u.DryRun,
		PerFile:    make(map[string]FileStatus),
	}

	if u.DryRun {
		ctx.Log.Infof("[dry run] would upload %d file(s) to %s", len(order), identifier)
		for _, rel := range order {
			ctx.Log.Infof("[dry run]   %s -> %s", set.Files[rel].AbsolutePath, mapping[rel])
			result.PerFile[rel] = FileStatus{Key: mapping[rel]}
		}
		return result, nil
	}

	exists, err := u.Store.Exists(ctx, identifier)
	if err != nil {
		return nil, errors.Wrap(err, "archive: unable to check for existing item")
	}
	if exists {
		// Idempotent skip: re-running against an uploaded item is a success.
		ctx.Log.Infof("Item %s already exists, skipping upload", identifier)
		result.Skipped = true
		for _, rel := range order {
			result.PerFile[rel] = FileStatus{Key: mapping[rel], Uploaded: false}
		}
		return result, nil
	}

	ctx.Log.Infof("Uploading %d file(s) to %s", len(order), identifier)

	headersFn := u.Headers
	if headersFn == nil {
		headersFn = ias3.MetadataHeaders
	}
	metaHeaders := headersFn(md.Fields())
	failed := 0
	for i, rel := range order {
		entry := set.Files[rel]
		key := mapping[rel]

		// Item metadata rides along with the first object only.
		var headers map[string][]string
		if i == 0 {
			headers = metaHeaders
		}

		ctx.Log.Debugf("  %s -> %s", entry.AbsolutePath, key)
		if err := u.Store.PutFile(ctx, identifier, key, entry.AbsolutePath, headers); err != nil {
			ctx.Log.Errorf("Failed to upload %s: %v", rel, err)
			result.PerFile[rel] = FileStatus{Key: key, Error: err.Error()}
			failed++
			continue
		}
		result.PerFile[rel] = FileStatus{Key: key, Uploaded: true}
	}

	if failed > 0 {
		return result, errors.Wrapf(common.ErrPartialUpload, "%d of %d file(s) failed", failed, len(order))
	}
	return result, nil
}

// BuildUploadMap maps relative paths to upload keys and returns the
// deterministic upload order. By default keys are the normalized relative
// paths, preserving structure. Flattened, keys are bare filenames with numeric
// suffixes resolving collisions in the order encountered.
func BuildUploadMap(set *fileset.ContentSet, flatten bool) (map[string]string, []string) {
	mapping := make(map[string]string)
	var order []string

	if !flatten {
		for _, rel := range set.SortedPaths() {
			if util.IsPartialFile(path.Base(rel)) {
				continue
			}
			key := strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "/")
			mapping[rel] = key
			order = append(order, rel)
		}
		return mapping, order
	}

	counts := make(map[string]int)
	for _, rel := range set.SortedPaths() {
		name := path.Base(rel)
		if util.IsPartialFile(name) {
			continue
		}
		if n, seen := counts[name]; seen {
			counts[name] = n + 1
			ext := path.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
		} else {
			counts[name] = 0
		}
		mapping[rel] = name
		order = append(order, rel)
	}
	return mapping, order
}
