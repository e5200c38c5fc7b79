package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key := "MYSUPERSECRETKEY"
	input := "Hello world!"
	secret, err := Encrypt(key, input)
	require.NoError(t, err)
	plain, err := Decrypt(key, secret)
	require.NoError(t, err)
	assert.Equal(t, input, plain)
}

func TestDecryptLegacyMagicCryptCiphertext(t *testing.T) {
	key := "MYSUPERSECRETKEY"
	legacySecret := "z4Z6LpcpYqBW4+bkIok+5A=="
	plain, err := Decrypt(key, legacySecret)
	require.NoError(t, err)
	assert.Equal(t, "Hello world!", plain)
}

func TestEncryptionsAreNonDeterministicButRoundtrip(t *testing.T) {
	key := "MYSUPERSECRETKEY"
	input := "Hello world!"
	s1, err := Encrypt(key, input)
	require.NoError(t, err)
	s2, err := Encrypt(key, input)
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)

	p1, err := Decrypt(key, s1)
	require.NoError(t, err)
	p2, err := Decrypt(key, s2)
	require.NoError(t, err)
	assert.Equal(t, input, p1)
	assert.Equal(t, input, p2)
}

func TestWrongKeyFails(t *testing.T) {
	secret, err := Encrypt("correct-key", "sensitive data")
	require.NoError(t, err)
	_, err = Decrypt("wrong-key", secret)
	assert.Error(t, err)
}

func TestInvalidBase64Fails(t *testing.T) {
	_, err := Decrypt("key", "not-valid-base64!!!")
	assert.Error(t, err)
}
