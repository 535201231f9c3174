package dates

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dhowden/tag"
	"github.com/gabriel-vasile/mimetype"

	"github.com/t2bot/iadrive/util"
)

// Container date tags checked against the raw tag map. TDRC/TDOR/TYER are the
// ID3v2 recording-date frames; date/creation_time cover vorbis comments and mp4
// atoms; \xa9day is the iTunes-style mp4 day atom.
var tagDateKeys = []string{"TDRC", "TDOR", "TYER", "date", "DATE", "creation_time", "\xa9day"}

func tagDates(path string) (out []time.Time) {
	defer func() {
		_ = recover()
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}

	raw := m.Raw()
	for _, key := range tagDateKeys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if dt, ok := ParseAny(rawTagString(v)); ok {
			out = append(out, dt)
		}
	}

	if len(out) == 0 && m.Year() > 0 {
		out = append(out, time.Date(m.Year(), 1, 1, 0, 0, 0, 0, time.UTC))
	}
	return out
}

func rawTagString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// sniffsAsMedia gates the ffprobe fallback: no point shelling out for a file that
// only has a media extension.
func sniffsAsMedia(path string) bool {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return true // let ffprobe decide
	}
	return util.HasAnyPrefix(mtype.String(), []string{"audio/", "video/"})
}

func probeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

func ffprobeDates(path string) []time.Time {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil // strategy unavailable, not an error
	}

	cmd := exec.Command(bin,
		"-v", "error",
		"-show_entries", "format_tags=creation_time:stream_tags=creation_time",
		"-of", "default=nk=1:nw=1",
		path)
	stdout, err := cmd.Output()
	if err != nil {
		return nil
	}

	var out []time.Time
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		if dt, ok := ParseAny(scanner.Text()); ok {
			out = append(out, dt)
		}
	}
	return out
}
