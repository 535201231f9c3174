// Package drive downloads Google Drive files and folders over the public
// `uc?export=download` endpoint, including the confirm-token interstitial that
// large files trigger. Folder listings are scraped from the embedded folder
// view, which works without credentials for anyone-with-the-link folders.
package drive

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/sources"
	"github.com/t2bot/iadrive/util"
)

var idPatterns = []struct {
	re     *regexp.Regexp
	folder bool
}{
	{regexp.MustCompile(`drive\.google\.com/drive/(?:u/\d+/)?folders/([a-zA-Z0-9_-]+)`), true},
	{regexp.MustCompile(`drive\.google\.com/folderview\?id=([a-zA-Z0-9_-]+)`), true},
	{regexp.MustCompile(`drive\.google\.com/file/d/([a-zA-Z0-9_-]+)`), false},
	{regexp.MustCompile(`drive\.google\.com/(?:open|uc)\?(?:.*&)?id=([a-zA-Z0-9_-]+)`), false},
}

var genericIdPattern = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)

// ParseUrl extracts the Drive content id and whether the URL names a folder.
func ParseUrl(rawUrl string) (string, bool, bool) {
	for _, p := range idPatterns {
		if m := p.re.FindStringSubmatch(rawUrl); m != nil {
			return m[1], p.folder, true
		}
	}
	if m := genericIdPattern.FindStringSubmatch(rawUrl); m != nil {
		return m[1], false, true
	}
	return "", false, false
}

type Drive struct {
	Client *http.Client
}

func New() *Drive {
	return &Drive{Client: &http.Client{Timeout: 30 * time.Minute}}
}

func (d *Drive) Name() string {
	return "Google Drive"
}

func (d *Drive) Matches(rawUrl string) bool {
	return strings.Contains(rawUrl, "drive.google.com")
}

func (d *Drive) Download(ctx rcontext.RequestContext, rawUrl string, destBase string) (*sources.DownloadResult, error) {
	id, folder, ok := ParseUrl(rawUrl)
	if !ok {
		return nil, errors.Wrap(common.ErrUnsupportedUrl, rawUrl)
	}

	root := filepath.Join(destBase, "drive-"+id)

	if folder {
		ctx.Log.Infof("Downloading Google Drive folder %s", id)
		name, files, err := d.downloadFolder(ctx, id, root)
		if err != nil {
			return nil, err
		}
		return &sources.DownloadResult{
			Root:      root,
			Kind:      common.KindDriveFolder,
			ContentID: id,
			Title:     name,
			Files:     files,
		}, nil
	}

	ctx.Log.Infof("Downloading Google Drive file %s", id)
	path, err := d.downloadFile(ctx, id, root)
	if err != nil {
		return nil, err
	}
	return &sources.DownloadResult{
		Root:      root,
		Kind:      common.KindDriveFile,
		ContentID: id,
		Title:     filepath.Base(path),
		Files:     []string{path},
	}, nil
}

// downloadFile fetches one file by id into destDir and returns its local path.
func (d *Drive) downloadFile(ctx rcontext.RequestContext, id string, destDir string) (string, error) {
	res, err := d.get(ctx, "https://drive.google.com/uc?export=download&id="+url.QueryEscape(id))
	if err != nil {
		return "", errors.Wrap(common.ErrDownloadFailed, err.Error())
	}

	// Large or unscanned files return an HTML interstitial instead of bytes;
	// re-request using the hidden form's confirm parameters.
	if strings.HasPrefix(res.Header.Get("Content-Type"), "text/html") {
		confirmUrl, err2 := parseConfirmForm(res)
		res.Body.Close()
		if err2 != nil {
			return "", errors.Wrapf(common.ErrDownloadFailed, "file %s: %s (is the link shared publicly?)", id, err2.Error())
		}
		ctx.Log.Debug("Following download confirmation: ", confirmUrl)
		if res, err = d.get(ctx, confirmUrl); err != nil {
			return "", errors.Wrap(common.ErrDownloadFailed, err.Error())
		}
		if strings.HasPrefix(res.Header.Get("Content-Type"), "text/html") {
			res.Body.Close()
			return "", errors.Wrapf(common.ErrDownloadFailed, "file %s: drive returned another page instead of content", id)
		}
	}
	defer res.Body.Close()

	name := sources.FilenameFromResponse(res)
	if name == "" {
		name = "drive-" + id
	}
	dest := filepath.Join(destDir, util.SanitizeFilename(name))

	n, err := sources.FetchToFile(res.Body, dest)
	if err != nil {
		return "", errors.Wrap(common.ErrDownloadFailed, err.Error())
	}
	ctx.Log.Infof("Downloaded %s (%d bytes)", name, n)
	return dest, nil
}

// downloadFolder scrapes the embedded folder view and downloads every entry,
// recursing into subfolders. Returns the folder's display name and the fetched
// file paths. Folder contents land under destDir/<folder name>/.
func (d *Drive) downloadFolder(ctx rcontext.RequestContext, id string, destDir string) (string, []string, error) {
	name, entries, err := d.listFolder(ctx, id)
	if err != nil {
		return "", nil, err
	}
	files, err := d.fetchEntries(ctx, entries, filepath.Join(destDir, util.SanitizeFilename(name)))
	if err != nil {
		return "", nil, err
	}
	if len(files) == 0 {
		return "", nil, errors.Wrapf(common.ErrNoContent, "folder %s", id)
	}
	return name, files, nil
}

type folderEntry struct {
	id     string
	name   string
	folder bool
}

func (d *Drive) listFolder(ctx rcontext.RequestContext, id string) (string, []folderEntry, error) {
	res, err := d.get(ctx, "https://drive.google.com/embeddedfolderview?id="+url.QueryEscape(id))
	if err != nil {
		return "", nil, errors.Wrap(common.ErrDownloadFailed, err.Error())
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", nil, errors.Wrapf(common.ErrDownloadFailed, "folder %s: listing returned status %d", id, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", nil, errors.Wrap(common.ErrDownloadFailed, err.Error())
	}

	name := strings.TrimSpace(doc.Find("title").First().Text())
	name = strings.TrimSuffix(name, " - Google Drive")
	if name == "" {
		name = id
	}

	var entries []folderEntry
	doc.Find("div.flip-entry").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Find("a").First().Attr("href")
		entryName := strings.TrimSpace(sel.Find("div.flip-entry-title").First().Text())
		if entryId, folder, ok := ParseUrl(href); ok {
			entries = append(entries, folderEntry{id: entryId, name: entryName, folder: folder})
		}
	})
	return name, entries, nil
}

func (d *Drive) fetchEntries(ctx rcontext.RequestContext, entries []folderEntry, dir string) ([]string, error) {
	var files []string
	for _, entry := range entries {
		if entry.folder {
			subName, subEntries, err := d.listFolder(ctx, entry.id)
			if err != nil {
				return nil, err
			}
			if entry.name == "" {
				entry.name = subName
			}
			subFiles, err := d.fetchEntries(ctx, subEntries, filepath.Join(dir, util.SanitizeFilename(entry.name)))
			if err != nil {
				return nil, err
			}
			files = append(files, subFiles...)
			continue
		}

		path, err := d.downloadFile(ctx, entry.id, dir)
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func (d *Drive) get(ctx rcontext.RequestContext, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	res, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("status %d from %s", res.StatusCode, target)
	}
	return res, nil
}

// parseConfirmForm pulls the download form out of the interstitial page and
// rebuilds the confirmed download URL.
func parseConfirmForm(res *http.Response) (string, error) {
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", err
	}

	form := doc.Find("form#download-form").First()
	action, ok := form.Attr("action")
	if !ok || action == "" {
		return "", errors.New("no download confirmation form found")
	}

	params := url.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		value, _ := sel.Attr("value")
		if name != "" {
			params.Set(name, value)
		}
	})
	if len(params) == 0 {
		return action, nil
	}
	return action + "?" + params.Encode(), nil
}
