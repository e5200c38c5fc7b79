package credential

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

const gcmNonceLen = 12

// Encrypt encrypts input with AES-128-GCM under a key derived from key by
// MD5, returning nonce||ciphertext as standard Base64. Every call uses a
// fresh random nonce, so repeated calls on the same input never match.
func Encrypt(key, input string) (string, error) {
	block, err := aes.NewCipher(deriveGCMKey(key))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcmNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(input), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)), nil
}

// Decrypt decrypts a Base64 secret produced by Encrypt. It first tries
// AES-128-GCM; on failure it falls back to the legacy AES-128-CBC format
// produced by magic-crypt v4 (MD5-derived key, zero IV, PKCS7 padding),
// so credential stores written by older clients keep working.
func Decrypt(key, secret string) (string, error) {
	if plain, err := decryptGCM(key, secret); err == nil {
		return plain, nil
	}
	return decryptLegacyCBC(key, secret)
}

func decryptGCM(key, secret string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", err
	}
	if len(raw) < gcmNonceLen {
		return "", errors.New("credential: ciphertext too short")
	}
	nonce, ciphertext := raw[:gcmNonceLen], raw[gcmNonceLen:]
	block, err := aes.NewCipher(deriveGCMKey(key))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func decryptLegacyCBC(key, secret string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", errors.New("credential: invalid legacy ciphertext length")
	}
	keyBytes := md5.Sum([]byte(key))
	iv := make([]byte, aes.BlockSize)
	block, err := aes.NewCipher(keyBytes[:])
	if err != nil {
		return "", err
	}
	mode := cipher.NewCBCDecrypter(block, iv)
	plain := make([]byte, len(raw))
	mode.CryptBlocks(plain, raw)
	return unpadPKCS7(plain)
}

func unpadPKCS7(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("credential: empty legacy plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return "", errors.New("credential: bad PKCS7 padding")
	}
	if !bytes.Equal(data[len(data)-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return "", errors.New("credential: bad PKCS7 padding")
	}
	return string(data[:len(data)-padLen]), nil
}

func deriveGCMKey(key string) []byte {
	sum := md5.Sum([]byte(key))
	return sum[:]
}
