package fileset

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/util"
)

// FileEntry is one downloaded file. The relative path is slash-separated and is
// the unique key within a content set.
type FileEntry struct {
	RelativePath string
	AbsolutePath string
	SizeBytes    uint64
}

// ContentSet is the full group of files produced by one download operation. It is
// built once after download and never mutated afterwards.
type ContentSet struct {
	ContentID string
	Kind      string
	Files     map[string]FileEntry
}

// Enumerate walks root and builds a ContentSet. Partial download artifacts are
// excluded. root may also be a single file.
func Enumerate(root string, contentID string, kind string) (*ContentSet, error) {
	set := &ContentSet{
		ContentID: contentID,
		Kind:      kind,
		Files:     make(map[string]FileEntry),
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "fileset: unable to stat %s", root)
	}

	if !info.IsDir() {
		name := filepath.Base(root)
		if !util.IsPartialFile(name) {
			set.Files[name] = FileEntry{
				RelativePath: name,
				AbsolutePath: root,
				SizeBytes:    uint64(info.Size()),
			}
		}
		return set, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if util.IsPartialFile(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
		set.Files[rel] = FileEntry{
			RelativePath: rel,
			AbsolutePath: path,
			SizeBytes:    uint64(fi.Size()),
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fileset: error walking %s", root)
	}

	return set, nil
}

func (s *ContentSet) IsEmpty() bool {
	return len(s.Files) == 0
}

// SortedPaths returns the relative paths in lexicographic order. Everything that
// iterates a content set does so in this order to keep output deterministic.
func (s *ContentSet) SortedPaths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Extensions returns the sorted set of lowercased file extensions present,
// without the leading dot.
func (s *ContentSet) Extensions() []string {
	seen := make(map[string]bool)
	for p := range s.Files {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
		if ext != "" {
			seen[ext] = true
		}
	}
	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FolderCount returns the number of distinct non-empty parent directories among
// the relative paths.
func (s *ContentSet) FolderCount() int {
	seen := make(map[string]bool)
	for p := range s.Files {
		dir := filepath.ToSlash(filepath.Dir(p))
		if dir != "" && dir != "." {
			seen[dir] = true
		}
	}
	return len(seen)
}

// CommonDir returns the deepest directory shared by every relative path, or an
// empty string when the files do not share one.
func (s *ContentSet) CommonDir() string {
	var common []string
	first := true
	for p := range s.Files {
		dir := filepath.ToSlash(filepath.Dir(p))
		if dir == "." {
			return ""
		}
		parts := strings.Split(dir, "/")
		if first {
			common = parts
			first = false
			continue
		}
		max := len(common)
		if len(parts) < max {
			max = len(parts)
		}
		i := 0
		for i < max && common[i] == parts[i] {
			i++
		}
		common = common[:i]
		if len(common) == 0 {
			return ""
		}
	}
	return strings.Join(common, "/")
}

// RequireFiles returns ErrNoContent when the set has nothing usable in it.
func (s *ContentSet) RequireFiles() error {
	if s.IsEmpty() {
		return common.ErrNoContent
	}
	return nil
}
