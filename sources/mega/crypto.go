package mega

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// MEGA's base64 dialect: URL-safe alphabet, no padding.
func b64decode(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	s = strings.TrimRight(s, "=")
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	return base64.StdEncoding.DecodeString(s)
}

// unpackFileKey splits a 32-byte file key into the 16-byte AES key (the XOR
// fold of both halves) and the 16-byte CTR IV (nonce plus zeroed counter).
func unpackFileKey(full []byte) ([]byte, []byte, error) {
	if len(full) != 32 {
		return nil, nil, errors.Errorf("mega: unexpected file key length %d", len(full))
	}
	key := make([]byte, 16)
	for i := 0; i < 16; i++ {
		key[i] = full[i] ^ full[i+16]
	}
	iv := make([]byte, 16)
	copy(iv, full[16:24])
	return key, iv, nil
}

// decryptAttr decodes a node attribute blob: AES-CBC with a zero IV, yielding
// "MEGA" followed by a JSON object that carries the node name.
func decryptAttr(key []byte, data []byte) (string, error) {
	if len(key) != 16 || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", errors.New("mega: malformed attribute blob")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(plain, data)

	plainStr := strings.TrimRight(string(plain), "\x00")
	if !strings.HasPrefix(plainStr, "MEGA") {
		return "", errors.New("mega: attribute blob failed to decrypt")
	}
	attrs := struct {
		Name string `json:"n"`
	}{}
	if err = json.Unmarshal([]byte(plainStr[4:]), &attrs); err != nil {
		return "", errors.Wrap(err, "mega: unparsable attributes")
	}
	return attrs.Name, nil
}

// decryptNodeKey decrypts a folder node's key with the share master key
// (AES-ECB block by block).
func decryptNodeKey(masterKey []byte, enc []byte) ([]byte, error) {
	if len(masterKey) != 16 || len(enc) == 0 || len(enc)%aes.BlockSize != 0 {
		return nil, errors.New("mega: malformed node key")
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(enc))
	for i := 0; i < len(enc); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], enc[i:i+aes.BlockSize])
	}
	return out, nil
}

// ctrReader wraps the encrypted download stream with the AES-CTR decryptor.
func ctrReader(key []byte, iv []byte, r io.Reader) (io.Reader, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &cipher.StreamReader{S: cipher.NewCTR(block, iv), R: r}, nil
}
