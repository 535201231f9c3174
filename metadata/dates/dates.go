// Package dates extracts embedded timestamps from downloaded files. Extractors
// are dispatched by extension and are failure-isolated: a malformed file, a
// missing tag or an absent ffprobe binary all mean "no date from this source",
// never an error.
package dates

import (
	"path/filepath"
	"strings"
	"time"
)

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "tif": true, "tiff": true, "heic": true, "png": true,
}

var mediaExts = map[string]bool{
	"mp3": true, "flac": true, "m4a": true, "mp4": true, "mkv": true,
	"mov": true, "avi": true, "wav": true, "aac": true, "ogg": true, "opus": true,
}

// ExtractDates returns every embedded timestamp discoverable in the file. Zero
// results is normal. The caller takes the minimum; no ordering is guaranteed.
func ExtractDates(path string) []time.Time {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	switch {
	case imageExts[ext]:
		return imageDates(path)
	case ext == "pdf":
		return pdfDates(path)
	case mediaExts[ext]:
		out := tagDates(path)
		if len(out) == 0 && sniffsAsMedia(path) {
			out = ffprobeDates(path)
		}
		return out
	}
	return nil
}
