package dates

import (
	"os"
	"time"

	"rsc.io/pdf"
)

var pdfDateKeys = []string{"CreationDate", "ModDate"}

func pdfDates(path string) (out []time.Time) {
	// rsc.io/pdf panics on malformed cross-reference tables.
	defer func() {
		_ = recover()
	}()

	// pdf.Open leaves no way to close the underlying file, so open it here.
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil
	}

	r, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		return nil
	}
	info := r.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return nil
	}

	for _, key := range pdfDateKeys {
		v := info.Key(key)
		if v.Kind() != pdf.String {
			continue
		}
		if dt, ok := ParseAny(v.RawString()); ok {
			out = append(out, dt)
		}
	}
	return out
}
