// Package sources defines the download collaborators. Each source matches a URL
// shape, fetches the content into a scoped directory under the destination base,
// and reports what it downloaded.
package sources

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/util"
)

// DownloadResult is what a source hands back to the pipeline.
type DownloadResult struct {
	Root      string // local root of the downloaded content
	Kind      string // one of common.Kind*
	ContentID string
	Title     string   // display title, best effort
	DocType   string   // google docs only: document, spreadsheets, presentation
	Files     []string // absolute paths of downloaded files
}

type Source interface {
	Name() string
	Matches(url string) bool
	Download(ctx rcontext.RequestContext, url string, destBase string) (*DownloadResult, error)
}

// Detect returns the first source claiming the URL. Order matters: Google Docs
// URLs would otherwise also match the Drive source.
func Detect(srcs []Source, url string) (Source, error) {
	for _, s := range srcs {
		if s.Matches(url) {
			return s, nil
		}
	}
	return nil, errors.Wrap(common.ErrUnsupportedUrl, url)
}

// IdentifierPrefix returns the item identifier prefix for a content kind.
func IdentifierPrefix(kind string) string {
	switch kind {
	case common.KindGoogleDoc:
		return "docs"
	case common.KindMegaFile, common.KindMegaFolder:
		return "mega"
	default:
		return "drive"
	}
}

// Identifier builds the archive.org identifier for a download, falling back to
// a URL-derived identifier when the source could not parse a content id.
func Identifier(result *DownloadResult, originalUrl string) string {
	if result.ContentID != "" {
		return util.SanitizeIdentifier(IdentifierPrefix(result.Kind) + "-" + result.ContentID)
	}
	safe := strings.TrimPrefix(strings.TrimPrefix(originalUrl, "https://"), "http://")
	if len(safe) > 80 {
		safe = safe[:80]
	}
	return util.SanitizeIdentifier(IdentifierPrefix(result.Kind) + "-" + safe)
}
