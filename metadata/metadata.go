// Package metadata synthesizes the archive.org item record for a content set.
package metadata

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/common/version"
	"github.com/t2bot/iadrive/fileset"
	"github.com/t2bot/iadrive/util"
)

// DefaultCreator is used when no owner can be resolved, or when the source has
// no ownership concept at all (Mega.nz).
const DefaultCreator = "IAdrive"

// The subject field is capped by archive.org at 255 bytes of UTF-8.
const maxSubjectBytes = 255

type Options struct {
	Kind        string
	ContentID   string
	OriginalUrl string
	DocType     string // set for Google Docs content only
	RootName    string // display name of the download root
	Creator     string // resolved owner, empty for the default label
	Date        string // from the oldest-date resolver
	Year        string
	Collection  string
	Mediatype   string // empty means derive from the content
}

// ArchiveMetadata is the synthesized item record. It is created once per content
// set and passed immutable to upload; custom overrides always win.
type ArchiveMetadata struct {
	Title       string
	Description string
	Date        string
	Year        string
	Creator     string
	Subject     string
	Mediatype   string
	Collection  string
	FileCount   int
	FolderCount int
	OriginalUrl string
	Scanner     string
	Extra       map[string]interface{} // synthesized source-specific fields
	Custom      Custom                 // user overrides, last write wins
}

func Synthesize(ctx rcontext.RequestContext, set *fileset.ContentSet, opts Options, custom Custom) (*ArchiveMetadata, error) {
	if err := set.RequireFiles(); err != nil {
		return nil, err
	}

	md := &ArchiveMetadata{
		Title:       deriveTitle(set, opts),
		Description: describe(set, opts),
		Date:        opts.Date,
		Year:        opts.Year,
		Creator:     opts.Creator,
		Subject:     buildSubject(set, opts),
		Mediatype:   deriveMediatype(opts),
		Collection:  opts.Collection,
		FileCount:   len(set.Files),
		FolderCount: set.FolderCount(),
		OriginalUrl: opts.OriginalUrl,
		Scanner:     version.Scanner(),
		Extra:       make(map[string]interface{}),
		Custom:      custom,
	}

	if md.Creator == "" {
		md.Creator = DefaultCreator
	}
	if opts.Kind == common.KindGoogleDoc && opts.DocType != "" {
		md.Extra["doctype"] = opts.DocType
	}
	if common.IsMegaKind(opts.Kind) {
		md.Extra["source"] = "mega.nz"
	}

	ctx.Log.Debugf("Synthesized metadata: title=%q date=%s files=%d", md.Title, md.Date, md.FileCount)
	return md, nil
}

// Fields flattens the record into the key/value mapping the storage service
// accepts. Values are strings, or string slices for repeated custom keys.
func (m *ArchiveMetadata) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"title":       m.Title,
		"description": m.Description,
		"date":        m.Date,
		"year":        m.Year,
		"creator":     m.Creator,
		"subject":     m.Subject,
		"mediatype":   m.Mediatype,
		"collection":  m.Collection,
		"filecount":   strconv.Itoa(m.FileCount),
		"originalurl": m.OriginalUrl,
		"scanner":     m.Scanner,
	}
	if m.FolderCount > 0 {
		fields["foldercount"] = strconv.Itoa(m.FolderCount)
	}
	for k, v := range m.Extra {
		fields[k] = v
	}
	for k, v := range m.Custom {
		fields[k] = v
	}
	return fields
}

func deriveTitle(set *fileset.ContentSet, opts Options) string {
	paths := set.SortedPaths()

	if opts.Kind == common.KindGoogleDoc {
		// Export file names carry "<doctype>_" prefixes when no title could be
		// scraped; strip them rather than publishing machine names.
		name := path.Base(paths[0])
		title := strings.TrimSuffix(name, path.Ext(name))
		if strings.HasPrefix(title, opts.DocType+"_") {
			title = strings.TrimPrefix(title, opts.DocType+"_")
			title = strings.ReplaceAll(title, opts.ContentID, "Document")
		}
		return title
	}

	if len(paths) == 1 {
		return path.Base(paths[0])
	}

	if dir := set.CommonDir(); dir != "" {
		return path.Base(dir)
	}
	if opts.RootName != "" {
		return opts.RootName
	}
	return fmt.Sprintf("%s - %s", sourceLabel(opts.Kind), opts.ContentID)
}

func sourceLabel(kind string) string {
	switch kind {
	case common.KindGoogleDoc:
		return "Google Docs"
	case common.KindMegaFile, common.KindMegaFolder:
		return "Mega.nz"
	default:
		return "Google Drive"
	}
}

var doctypeLabels = map[string]string{
	"document":     "Document",
	"spreadsheets": "Spreadsheets",
	"presentation": "Presentation",
}

func doctypeLabel(docType string) string {
	if label, ok := doctypeLabels[docType]; ok {
		return label
	}
	return docType
}

func describe(set *fileset.ContentSet, opts Options) string {
	var lines []string
	switch {
	case opts.Kind == common.KindGoogleDoc:
		lines = append(lines, fmt.Sprintf("Google %s exported in:", doctypeLabel(opts.DocType)))
	case common.IsMegaKind(opts.Kind):
		lines = append(lines, "files included:")
	default:
		lines = append(lines, "Files included:")
	}

	for _, rel := range set.SortedPaths() {
		entry := set.Files[rel]
		lines = append(lines, fmt.Sprintf("- %s (%s)", rel, util.HumanSize(int64(entry.SizeBytes))))
	}
	return strings.Join(lines, "<br>")
}

func buildSubject(set *fileset.ContentSet, opts Options) string {
	var tags []string
	switch {
	case opts.Kind == common.KindGoogleDoc:
		tags = []string{"google", "docs", opts.DocType}
	case common.IsMegaKind(opts.Kind):
		tags = []string{"Mega", "mega.nz"}
	default:
		tags = []string{"google", "drive"}
	}
	tags = append(tags, set.Extensions()...)

	// Drop lowest-priority tags one at a time until the hard byte cap fits.
	subject := strings.Join(tags, ";") + ";"
	for len(subject) > maxSubjectBytes && len(tags) > 0 {
		tags = tags[:len(tags)-1]
		subject = strings.Join(tags, ";") + ";"
	}
	return subject
}

func deriveMediatype(opts Options) string {
	if opts.Mediatype != "" {
		return opts.Mediatype
	}
	if opts.Kind == common.KindGoogleDoc && opts.DocType == "document" {
		return "texts"
	}
	return "data"
}
