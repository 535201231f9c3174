package common

import (
	"errors"
)

var ErrNotConfigured = errors.New("internet archive credentials are not configured")
var ErrUnsupportedUrl = errors.New("unsupported url")
var ErrDownloadFailed = errors.New("download failed")
var ErrNoContent = errors.New("no files found to upload")
var ErrPartialUpload = errors.New("one or more files failed to upload")
var ErrEmptyIdentifier = errors.New("identifier sanitized to an empty string")
