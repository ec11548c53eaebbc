package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewEncryptorKeyLength(t *testing.T) {
	_, err := NewEncryptor("short")
	assert.ErrorIs(t, err, ErrKeyTooShort)

	_, err = NewEncryptor(testKey)
	assert.NoError(t, err)
}

func TestEncryptDecrypt(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	for _, plain := range []string{"", "secret", "p@ss w0rd;=", strings.Repeat("x", 512)} {
		sealed, err := e.Encrypt(plain)
		require.NoError(t, err)
		assert.NotEqual(t, plain, sealed)

		got, err := e.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	a, _ := e.Encrypt("secret")
	b, _ := e.Encrypt("secret")
	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsTampering(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)
	other, err := NewEncryptor(strings.Repeat("k", 40))
	require.NoError(t, err)

	sealed, err := e.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)

	_, err = e.Decrypt("!!not-base64!!")
	assert.Error(t, err)

	_, err = e.Decrypt("abc")
	assert.Error(t, err)
}
