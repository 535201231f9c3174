// Package gdocs exports Google Docs, Sheets and Slides. For preservation the
// document is exported in every format the docs frontend offers, not just one.
package gdocs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/sources"
	"github.com/t2bot/iadrive/util"
)

// ExportFormats maps each document type to its export formats and their
// human-readable labels.
var ExportFormats = map[string]map[string]string{
	"document": {
		"pdf":  "PDF",
		"docx": "Microsoft Word",
		"odt":  "OpenDocument Text",
		"rtf":  "Rich Text Format",
		"txt":  "Plain Text",
		"html": "HTML",
		"epub": "EPUB",
	},
	"spreadsheets": {
		"xlsx": "Microsoft Excel",
		"ods":  "OpenDocument Spreadsheet",
		"pdf":  "PDF",
		"csv":  "CSV (first sheet)",
		"tsv":  "TSV (first sheet)",
		"html": "HTML",
	},
	"presentation": {
		"pdf":  "PDF",
		"pptx": "Microsoft PowerPoint",
		"odp":  "OpenDocument Presentation",
		"txt":  "Plain Text",
		"jpeg": "JPEG (slides as images)",
		"png":  "PNG (slides as images)",
		"svg":  "SVG (slides as images)",
	},
}

var docTypeNames = map[string]string{
	"document":     "Document",
	"spreadsheets": "Spreadsheets",
	"presentation": "Presentation",
}

var idPattern = regexp.MustCompile(`docs\.google\.com/(document|spreadsheets|presentation)/d/([a-zA-Z0-9_-]+)`)
var titleSuffix = regexp.MustCompile(` - Google (Docs|Sheets|Slides).*$`)
var unsafeTitle = regexp.MustCompile(`[^\w\s-]`)

// ParseUrl returns the document type and id from a docs URL.
func ParseUrl(rawUrl string) (string, string, bool) {
	if m := idPattern.FindStringSubmatch(rawUrl); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

type GoogleDocs struct {
	Client *http.Client
}

func New() *GoogleDocs {
	return &GoogleDocs{Client: &http.Client{Timeout: 10 * time.Minute}}
}

func (g *GoogleDocs) Name() string {
	return "Google Docs"
}

func (g *GoogleDocs) Matches(rawUrl string) bool {
	_, _, ok := ParseUrl(rawUrl)
	return ok
}

func (g *GoogleDocs) Download(ctx rcontext.RequestContext, rawUrl string, destBase string) (*sources.DownloadResult, error) {
	docType, id, ok := ParseUrl(rawUrl)
	if !ok {
		return nil, errors.Wrap(common.ErrUnsupportedUrl, rawUrl)
	}
	formats := ExportFormats[docType]

	root := filepath.Join(destBase, "docs-"+id)
	title := g.scrapeTitle(ctx, rawUrl, id)

	// Keep a filesystem-friendly version of the scraped title for export names.
	safeTitle := strings.TrimSpace(unsafeTitle.ReplaceAllString(title, ""))
	if len(safeTitle) > 50 {
		safeTitle = strings.TrimSpace(safeTitle[:50])
	}

	names := make([]string, 0, len(formats))
	for f := range formats {
		names = append(names, f)
	}
	sort.Strings(names)

	ctx.Log.Infof("Exporting Google %s %s in %d format(s)", docTypeNames[docType], id, len(names))

	var files []string
	for _, f := range names {
		name := fmt.Sprintf("%s.%s", safeTitle, f)
		if safeTitle == "" {
			name = fmt.Sprintf("%s_%s.%s", docType, id, f)
		}
		dest := filepath.Join(root, util.SanitizeFilename(name))

		if err := g.export(ctx, docType, id, f, dest); err != nil {
			ctx.Log.Debugf("Export %s failed: %v", f, err)
			continue
		}
		ctx.Log.Infof("  exported %s (%s)", name, formats[f])
		files = append(files, dest)
	}

	if len(files) == 0 {
		return nil, errors.Wrapf(common.ErrDownloadFailed, "google %s %s could not be exported in any format", docType, id)
	}

	return &sources.DownloadResult{
		Root:      root,
		Kind:      common.KindGoogleDoc,
		ContentID: id,
		Title:     title,
		DocType:   docType,
		Files:     files,
	}, nil
}

func (g *GoogleDocs) export(ctx rcontext.RequestContext, docType string, id string, format string, dest string) error {
	target := fmt.Sprintf("https://docs.google.com/%s/d/%s/export?format=%s", docType, url.PathEscape(id), url.QueryEscape(format))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	res, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", res.StatusCode)
	}

	n, err := sources.FetchToFile(res.Body, dest)
	if err != nil {
		return err
	}
	if n == 0 {
		_ = os.Remove(dest)
		return errors.New("empty export")
	}
	return nil
}

// scrapeTitle fetches the document page and extracts its title. Failures fall
// back to a generic id-based title; this lookup never fails the download.
func (g *GoogleDocs) scrapeTitle(ctx rcontext.RequestContext, rawUrl string, id string) string {
	fallback := "Google Docs - " + id

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawUrl, nil)
	if err != nil {
		return fallback
	}
	res, err := g.Client.Do(req)
	if err != nil {
		ctx.Log.Debug("Title scrape failed: ", err)
		return fallback
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fallback
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return fallback
	}
	title := strings.TrimSpace(titleSuffix.ReplaceAllString(doc.Find("title").First().Text(), ""))
	if title == "" {
		return fallback
	}
	return title
}
