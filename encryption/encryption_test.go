package encryption_test

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/cloudbackup/encryption"
)

func TestSealOpen(t *testing.T) {
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	plaintext := bytes.Repeat([]byte("backup"), 100)

	sealed, err := encryption.Seal(key, plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "backup")

	again, err := encryption.Seal(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must be random")

	opened, err := encryption.Open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpen_Failures(t *testing.T) {
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	other, err := encryption.GenerateKey()
	require.NoError(t, err)
	sealed, err := encryption.Seal(key, []byte("secret"))
	require.NoError(t, err)

	_, err = encryption.Open(other, sealed)
	assert.ErrorIs(t, err, encryption.ErrDecrypt)

	tampered := bytes.Clone(sealed)
	tampered[len(tampered)-1] ^= 0xff
	_, err = encryption.Open(key, tampered)
	assert.ErrorIs(t, err, encryption.ErrDecrypt)

	_, err = encryption.Open(key, []byte("PK\x03\x04 plain zip"))
	assert.ErrorIs(t, err, encryption.ErrNotSealed)

	_, err = encryption.Open(nil, sealed)
	assert.ErrorIs(t, err, encryption.ErrNoKey)
}

func TestSeal_BadKey(t *testing.T) {
	_, err := encryption.Seal(nil, []byte("x"))
	assert.ErrorIs(t, err, encryption.ErrNoKey)

	_, err = encryption.Seal([]byte("short"), []byte("x"))
	assert.ErrorIs(t, err, encryption.ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	key, err := encryption.GenerateKey()
	require.NoError(t, err)

	parsed, err := encryption.ParseKey(encryption.FormatKey(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	parsed, err = encryption.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = encryption.ParseKey("deadbeef")
	assert.ErrorIs(t, err, encryption.ErrInvalidKey)
}

func TestLoadKeyFile(t *testing.T) {
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "backup.key")
	require.NoError(t, os.WriteFile(path, []byte(encryption.FormatKey(key)), 0600))

	loaded, err := encryption.LoadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	_, err = encryption.LoadKeyFile(filepath.Join(t.TempDir(), "missing.key"))
	assert.Error(t, err)
}
