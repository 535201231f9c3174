package sources

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FetchToFile streams a response body to destPath. The bytes land in a `.part`
// file first and are renamed only once the body is fully read, so an
// interrupted transfer is recognizable as a partial download artifact.
func FetchToFile(body io.Reader, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, errors.Wrap(err, "sources: unable to create download directory")
	}

	partPath := destPath + ".part"
	f, err := os.Create(partPath)
	if err != nil {
		return 0, errors.Wrap(err, "sources: unable to create download file")
	}

	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, errors.Wrapf(err, "sources: transfer to %s failed", destPath)
	}

	if err = os.Rename(partPath, destPath); err != nil {
		return n, errors.Wrap(err, "sources: unable to finalize download")
	}
	return n, nil
}

// FilenameFromResponse extracts the server-suggested filename from the
// Content-Disposition header, or returns an empty string.
func FilenameFromResponse(res *http.Response) string {
	cd := res.Header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return params["filename"]
}
