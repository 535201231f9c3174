// Package mega downloads Mega.nz public file and folder links. MEGA encrypts
// content and node attributes client-side, so the downloader decrypts both
// using the key material carried in the URL fragment (AES-CTR for content,
// AES-CBC for attributes, AES-ECB for folder node keys).
package mega

import (
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/sources"
	"github.com/t2bot/iadrive/util"
)

var urlPatterns = []struct {
	re     *regexp.Regexp
	folder bool
}{
	{regexp.MustCompile(`mega(?:\.co)?\.nz/file/([0-9A-Za-z_-]+)#([0-9A-Za-z_-]+)`), false},
	{regexp.MustCompile(`mega(?:\.co)?\.nz/folder/([0-9A-Za-z_-]+)#([0-9A-Za-z_-]+)`), true},
	{regexp.MustCompile(`mega(?:\.co)?\.nz/#!([0-9A-Za-z_-]+)!([0-9A-Za-z_-]+)`), false},
	{regexp.MustCompile(`mega(?:\.co)?\.nz/#F!([0-9A-Za-z_-]+)!([0-9A-Za-z_-]+)`), true},
}

// ParseUrl extracts the node handle and key material from a public link.
func ParseUrl(rawUrl string) (string, string, bool, bool) {
	for _, p := range urlPatterns {
		if m := p.re.FindStringSubmatch(rawUrl); m != nil {
			return m[1], m[2], p.folder, true
		}
	}
	return "", "", false, false
}

type Mega struct {
	Client *http.Client
	api    *apiClient
}

func New() *Mega {
	client := &http.Client{Timeout: 30 * time.Minute}
	return &Mega{
		Client: client,
		api:    &apiClient{http: &http.Client{Timeout: 30 * time.Second}, base: apiBase},
	}
}

func (m *Mega) Name() string {
	return "Mega.nz"
}

func (m *Mega) Matches(rawUrl string) bool {
	return util.HasAnySubstring(strings.ToLower(rawUrl), []string{"mega.nz", "mega.co.nz"})
}

func (m *Mega) Download(ctx rcontext.RequestContext, rawUrl string, destBase string) (*sources.DownloadResult, error) {
	handle, keyStr, folder, ok := ParseUrl(rawUrl)
	if !ok {
		return nil, errors.Wrap(common.ErrUnsupportedUrl, rawUrl)
	}

	root := filepath.Join(destBase, "mega-"+handle)

	if folder {
		ctx.Log.Infof("Downloading Mega.nz folder %s", handle)
		title, files, err := m.downloadFolder(ctx, handle, keyStr, root)
		if err != nil {
			return nil, err
		}
		return &sources.DownloadResult{
			Root:      root,
			Kind:      common.KindMegaFolder,
			ContentID: handle,
			Title:     title,
			Files:     files,
		}, nil
	}

	ctx.Log.Infof("Downloading Mega.nz file %s", handle)
	path, err := m.downloadFile(ctx, handle, keyStr, root)
	if err != nil {
		return nil, err
	}
	return &sources.DownloadResult{
		Root:      root,
		Kind:      common.KindMegaFile,
		ContentID: handle,
		Title:     filepath.Base(path),
		Files:     []string{path},
	}, nil
}

func (m *Mega) downloadFile(ctx rcontext.RequestContext, handle string, keyStr string, destDir string) (string, error) {
	fullKey, err := b64decode(keyStr)
	if err != nil {
		return "", errors.Wrap(common.ErrDownloadFailed, "undecodable key in link")
	}
	key, iv, err := unpackFileKey(fullKey)
	if err != nil {
		return "", errors.Wrap(common.ErrDownloadFailed, err.Error())
	}

	result := getResult{}
	cmd := map[string]interface{}{"a": "g", "g": 1, "p": handle}
	if err = m.api.request(ctx, url.Values{}, cmd, &result); err != nil {
		return "", errors.Wrap(common.ErrDownloadFailed, err.Error())
	}

	name := "mega-" + handle
	if attrData, err2 := b64decode(result.Attrs); err2 == nil {
		if n, err2 := decryptAttr(key, attrData); err2 == nil && n != "" {
			name = n
		}
	}

	dest := filepath.Join(destDir, util.SanitizeFilename(name))
	if err = m.fetchDecrypted(ctx, result.URL, key, iv, dest); err != nil {
		return "", err
	}
	ctx.Log.Infof("Downloaded %s (%d bytes)", name, result.Size)
	return dest, nil
}

// downloadFolder lists the shared tree, then fetches every file node under its
// decrypted relative path. Returns the top folder's name.
func (m *Mega) downloadFolder(ctx rcontext.RequestContext, handle string, keyStr string, destDir string) (string, []string, error) {
	masterKey, err := b64decode(keyStr)
	if err != nil || len(masterKey) != 16 {
		return "", nil, errors.Wrap(common.ErrDownloadFailed, "undecodable folder key in link")
	}

	list := nodeList{}
	query := url.Values{"n": []string{handle}}
	if err = m.api.request(ctx, query, map[string]interface{}{"a": "f", "c": 1, "r": 1}, &list); err != nil {
		return "", nil, errors.Wrap(common.ErrDownloadFailed, err.Error())
	}
	if len(list.Nodes) == 0 {
		return "", nil, errors.Wrap(common.ErrNoContent, "empty mega folder")
	}

	type decrypted struct {
		node node
		name string
		key  []byte // folded file key for files, nil for folders
		iv   []byte
	}
	byHandle := make(map[string]decrypted)

	for _, n := range list.Nodes {
		nodeKey, err := m.decryptShareKey(masterKey, n.Key)
		if err != nil {
			ctx.Log.Debugf("Skipping node %s: %v", n.Handle, err)
			continue
		}

		d := decrypted{node: n}
		attrKey := nodeKey
		if n.Type == 0 {
			if d.key, d.iv, err = unpackFileKey(nodeKey); err != nil {
				ctx.Log.Debugf("Skipping node %s: %v", n.Handle, err)
				continue
			}
			attrKey = d.key
		}

		attrData, err := b64decode(n.Attrs)
		if err != nil {
			continue
		}
		if d.name, err = decryptAttr(attrKey, attrData); err != nil || d.name == "" {
			ctx.Log.Debugf("Skipping node %s: unreadable attributes", n.Handle)
			continue
		}
		byHandle[n.Handle] = d
	}

	pathOf := func(h string) string {
		var parts []string
		for {
			d, ok := byHandle[h]
			if !ok {
				break
			}
			parts = append([]string{util.SanitizeFilename(d.name)}, parts...)
			h = d.node.Parent
		}
		return filepath.Join(parts...)
	}

	title := ""
	if top, ok := byHandle[list.Nodes[0].Handle]; ok {
		title = top.name
	}

	var files []string
	for h, d := range byHandle {
		if d.node.Type != 0 {
			continue
		}

		result := getResult{}
		cmd := map[string]interface{}{"a": "g", "g": 1, "n": h}
		if err := m.api.request(ctx, url.Values{"n": []string{handle}}, cmd, &result); err != nil {
			return "", nil, errors.Wrap(common.ErrDownloadFailed, err.Error())
		}

		dest := filepath.Join(destDir, pathOf(h))
		if err := m.fetchDecrypted(ctx, result.URL, d.key, d.iv, dest); err != nil {
			return "", nil, err
		}
		ctx.Log.Infof("Downloaded %s (%d bytes)", d.name, d.node.Size)
		files = append(files, dest)
	}

	if len(files) == 0 {
		return "", nil, errors.Wrap(common.ErrNoContent, "mega folder contained no downloadable files")
	}
	return title, files, nil
}

// decryptShareKey handles the "k" field: "<handle>:<base64>" pairs, possibly
// several separated by '/'. Only the first pair matters for public shares.
func (m *Mega) decryptShareKey(masterKey []byte, raw string) ([]byte, error) {
	first := strings.Split(raw, "/")[0]
	_, encStr, found := strings.Cut(first, ":")
	if !found {
		return nil, errors.New("mega: node has no usable key")
	}
	enc, err := b64decode(encStr)
	if err != nil {
		return nil, errors.Wrap(err, "mega: undecodable node key")
	}
	return decryptNodeKey(masterKey, enc)
}

func (m *Mega) fetchDecrypted(ctx rcontext.RequestContext, downloadUrl string, key []byte, iv []byte, dest string) error {
	if downloadUrl == "" {
		return errors.Wrap(common.ErrDownloadFailed, "mega returned no download url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadUrl, nil)
	if err != nil {
		return errors.Wrap(common.ErrDownloadFailed, err.Error())
	}
	res, err := m.Client.Do(req)
	if err != nil {
		return errors.Wrap(common.ErrDownloadFailed, err.Error())
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errors.Wrapf(common.ErrDownloadFailed, "mega download returned status %d", res.StatusCode)
	}

	plain, err := ctrReader(key, iv, res.Body)
	if err != nil {
		return errors.Wrap(common.ErrDownloadFailed, err.Error())
	}
	if _, err = sources.FetchToFile(plain, dest); err != nil {
		return errors.Wrap(common.ErrDownloadFailed, err.Error())
	}
	return nil
}
