package dates

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synchsafe(n int) []byte {
	return []byte{
		byte((n >> 21) & 0x7f),
		byte((n >> 14) & 0x7f),
		byte((n >> 7) & 0x7f),
		byte(n & 0x7f),
	}
}

// buildID3v24 assembles a minimal ID3v2.4 tag with a single UTF-8 TDRC frame.
func buildID3v24(recordingTime string) []byte {
	body := &bytes.Buffer{}
	frameBody := append([]byte{0x03}, []byte(recordingTime)...) // 0x03 = UTF-8
	body.WriteString("TDRC")
	body.Write(synchsafe(len(frameBody)))
	body.Write([]byte{0x00, 0x00})
	body.Write(frameBody)

	out := &bytes.Buffer{}
	out.WriteString("ID3")
	out.Write([]byte{0x04, 0x00, 0x00})
	out.Write(synchsafe(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestTagDatesID3(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "song.mp3")
	require.NoError(t, os.WriteFile(path, buildID3v24("2003-04-05"), 0o644))

	out := tagDates(path)
	require.NotEmpty(t, out)
	assert.Equal(t, time.Date(2003, 4, 5, 0, 0, 0, 0, time.UTC), out[0])
}

func TestTagDatesNotMedia(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "noise.mp3")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an mp3"), 0o644))
	assert.Empty(t, tagDates(path))
}

func TestExtractDatesUnknownExtension(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01}, 0o644))
	assert.Empty(t, ExtractDates(path))
}
