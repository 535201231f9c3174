package mega

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUrl(t *testing.T) {
	cases := []struct {
		url    string
		handle string
		key    string
		folder bool
		ok     bool
	}{
		{"https://mega.nz/file/AbC123-_#keykeykey", "AbC123-_", "keykeykey", false, true},
		{"https://mega.nz/folder/XyZ789#folderkey", "XyZ789", "folderkey", true, true},
		{"https://mega.nz/#!oldhandle!oldkey", "oldhandle", "oldkey", false, true},
		{"https://mega.nz/#F!oldfolder!oldkey", "oldfolder", "oldkey", true, true},
		{"https://mega.co.nz/file/legacy#key", "legacy", "key", false, true},
		{"https://mega.nz/", "", "", false, false},
	}

	for _, c := range cases {
		handle, key, folder, ok := ParseUrl(c.url)
		assert.Equal(t, c.ok, ok, c.url)
		assert.Equal(t, c.handle, handle, c.url)
		assert.Equal(t, c.key, key, c.url)
		assert.Equal(t, c.folder, folder, c.url)
	}
}

func TestB64Decode(t *testing.T) {
	out, err := b64decode("aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	// URL-safe alphabet
	out, err = b64decode("_-8")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xef}, out)
}

func TestUnpackFileKey(t *testing.T) {
	full := make([]byte, 32)
	for i := range full {
		full[i] = byte(i)
	}
	key, iv, err := unpackFileKey(full)
	require.NoError(t, err)
	require.Len(t, key, 16)
	require.Len(t, iv, 16)
	for i := 0; i < 16; i++ {
		assert.Equal(t, full[i]^full[i+16], key[i])
	}
	assert.Equal(t, full[16:24], iv[:8])
	assert.Equal(t, make([]byte, 8), iv[8:])

	_, _, err = unpackFileKey(make([]byte, 16))
	assert.Error(t, err)
}

func encryptAttr(t *testing.T, key []byte, plain string) []byte {
	t.Helper()
	padded := []byte(plain)
	for len(padded)%aes.BlockSize != 0 {
		padded = append(padded, 0)
	}
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, padded)
	return out
}

func TestDecryptAttr(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	data := encryptAttr(t, key, `MEGA{"n":"vacation.jpg"}`)

	name, err := decryptAttr(key, data)
	require.NoError(t, err)
	assert.Equal(t, "vacation.jpg", name)

	_, err = decryptAttr(bytes.Repeat([]byte{0x13}, 16), data)
	assert.Error(t, err)
}

func TestDecryptNodeKey(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x07}, 16)
	nodeKey := bytes.Repeat([]byte{0xA5}, 32)

	block, err := aes.NewCipher(masterKey)
	require.NoError(t, err)
	enc := make([]byte, 32)
	for i := 0; i < 32; i += aes.BlockSize {
		block.Encrypt(enc[i:i+aes.BlockSize], nodeKey[i:i+aes.BlockSize])
	}

	out, err := decryptNodeKey(masterKey, enc)
	require.NoError(t, err)
	assert.Equal(t, nodeKey, out)
}

func TestCtrReaderRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x22}, 16)
	plain := []byte("the quick brown fox jumps over the lazy dog")

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	enc := make([]byte, len(plain))
	cipher.NewCTR(block, iv).XORKeyStream(enc, plain)

	r, err := ctrReader(key, iv, bytes.NewReader(enc))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}
