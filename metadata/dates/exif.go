package dates

import (
	"time"

	"github.com/dsoprea/go-exif/v3"
)

// Capture-time tags in priority order. DateTime is the least specific and often
// reflects the last edit rather than capture.
var exifDateTags = []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"}

func imageDates(path string) (out []time.Time) {
	// go-exif panics on some malformed inputs; a broken image means no date.
	defer func() {
		_ = recover()
	}()

	rawExif, err := exif.SearchFileAndExtractExif(path)
	if err != nil {
		return nil
	}
	tags, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	byName := make(map[string]string)
	for _, t := range tags {
		if _, ok := byName[t.TagName]; !ok {
			byName[t.TagName] = t.FormattedFirst
		}
	}

	for _, name := range exifDateTags {
		if v, ok := byName[name]; ok {
			if dt, ok := ParseAny(v); ok {
				out = append(out, dt)
			}
		}
	}
	return out
}
