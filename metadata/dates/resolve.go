package dates

import (
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/util"
)

// Resolver finds the oldest discoverable date in a downloaded tree. Embedded
// metadata wins over filesystem mtimes: downloading resets mtimes to download
// time, so the filesystem is a last resort, not a default.
type Resolver struct {
	Extract        func(path string) []time.Time
	ProbeAvailable func() bool
}

func NewResolver() *Resolver {
	return &Resolver{Extract: ExtractDates, ProbeAvailable: probeAvailable}
}

// OldestDate walks root and returns the oldest date as ("YYYY-MM-DD", "YYYY").
// It never fails: with no embedded dates it falls back to the minimum mtime, and
// with no files at all to the current time.
func (r *Resolver) OldestDate(ctx rcontext.RequestContext, root string) (string, string) {
	var oldestEmbedded *time.Time
	var oldestMtime *time.Time
	sawMedia := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries contribute no dates
		}
		if d.IsDir() || util.IsPartialFile(d.Name()) {
			return nil
		}
		if mediaExts[strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")] {
			sawMedia = true
		}

		for _, dt := range r.Extract(path) {
			dt := dt
			if oldestEmbedded == nil || dt.Before(*oldestEmbedded) {
				oldestEmbedded = &dt
			}
		}

		if fi, err := d.Info(); err == nil {
			m := fi.ModTime().UTC()
			if oldestMtime == nil || m.Before(*oldestMtime) {
				oldestMtime = &m
			}
		}
		return nil
	})
	if err != nil {
		ctx.Log.Warn("Error walking tree for dates: ", err)
	}
	if sawMedia && r.ProbeAvailable != nil && !r.ProbeAvailable() {
		ctx.Log.Warn("ffprobe is not installed; dates embedded in audio/video containers may be missed (install ffmpeg)")
	}

	dt := time.Now().UTC()
	switch {
	case oldestEmbedded != nil:
		dt = *oldestEmbedded
		ctx.Log.Debug("Using oldest embedded date: ", dt)
	case oldestMtime != nil:
		dt = *oldestMtime
		ctx.Log.Debug("No embedded dates found, using oldest modification time: ", dt)
	default:
		ctx.Log.Debug("No files found, using current time")
	}

	return dt.Format("2006-01-02"), strconv.Itoa(dt.Year())
}
