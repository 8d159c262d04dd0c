// Package encryption seals backup archives with XChaCha20-Poly1305.
//
// A sealed payload is the 4 byte magic, a random 24 byte nonce and the
// ciphertext. The magic is authenticated as additional data.
package encryption

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Extension is appended to the object name of sealed archives.
const Extension = ".enc"

const KeySize = chacha20poly1305.KeySize

var magic = []byte("CBK1")

var (
	ErrNoKey      = errors.New("no encryption key configured")
	ErrInvalidKey = errors.New("invalid encryption key")
	ErrNotSealed  = errors.New("payload is not a sealed archive")
	ErrDecrypt    = errors.New("could not decrypt payload")
)

// Seal encrypts plaintext with key.
func Seal(key []byte, plaintext []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrNoKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	out := make([]byte, len(magic)+aead.NonceSize(), len(magic)+aead.NonceSize()+len(plaintext)+aead.Overhead())
	copy(out, magic)
	nonce := out[len(magic):]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("could not generate nonce: %w", err)
	}
	return aead.Seal(out, nonce, plaintext, magic), nil
}

// Open reverses Seal.
func Open(key []byte, sealed []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrNoKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	headerSize := len(magic) + aead.NonceSize()
	if len(sealed) < headerSize+aead.Overhead() || !bytes.Equal(sealed[:len(magic)], magic) {
		return nil, ErrNotSealed
	}
	nonce := sealed[len(magic):headerSize]
	plaintext, err := aead.Open(nil, nonce, sealed[headerSize:], magic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return plaintext, nil
}

// GenerateKey returns a random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// ParseKey accepts a hex or standard base64 encoded key.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if key, err := hex.DecodeString(s); err == nil && len(key) == KeySize {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == KeySize {
		return key, nil
	}
	return nil, fmt.Errorf("%w: expected %d bytes, hex or base64 encoded", ErrInvalidKey, KeySize)
}

// LoadKeyFile reads a key written by FormatKey.
func LoadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read key file: %w", err)
	}
	return ParseKey(string(data))
}

func FormatKey(key []byte) string {
	return hex.EncodeToString(key)
}
