package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUrl(t *testing.T) {
	cases := []struct {
		url    string
		id     string
		folder bool
		ok     bool
	}{
		{"https://drive.google.com/drive/folders/1AbC-_dE", "1AbC-_dE", true, true},
		{"https://drive.google.com/drive/u/0/folders/1AbC", "1AbC", true, true},
		{"https://drive.google.com/folderview?id=1AbC", "1AbC", true, true},
		{"https://drive.google.com/file/d/1XyZ/view?usp=sharing", "1XyZ", false, true},
		{"https://drive.google.com/open?id=1XyZ", "1XyZ", false, true},
		{"https://drive.google.com/uc?export=download&id=1XyZ", "1XyZ", false, true},
		{"https://example.com/download?id=1XyZ", "1XyZ", false, true},
		{"https://drive.google.com/", "", false, false},
	}

	for _, c := range cases {
		id, folder, ok := ParseUrl(c.url)
		assert.Equal(t, c.ok, ok, c.url)
		assert.Equal(t, c.id, id, c.url)
		assert.Equal(t, c.folder, folder, c.url)
	}
}

func TestMatches(t *testing.T) {
	d := New()
	assert.True(t, d.Matches("https://drive.google.com/file/d/abc/view"))
	assert.True(t, d.Matches("https://drive.google.com/drive/folders/abc"))
	assert.False(t, d.Matches("https://mega.nz/file/abc#def"))
	assert.False(t, d.Matches("https://example.com"))
}
