// Package crypto seals sensitive column values with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoKey is returned when a sealed value is read without a configured key.
var ErrNoKey = errors.New("value is encrypted but no encryption key is configured")

// Encrypter encrypts and decrypts data.
type Encrypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncrypter uses AES-GCM with a random nonce prepended to each ciphertext.
type AESEncrypter struct {
	aead cipher.AEAD
}

// NewAESGCMFromBase64Key creates an AESEncrypter from a base64-encoded 32-byte key.
func NewAESGCMFromBase64Key(encodedKey string) (*AESEncrypter, error) {
	if encodedKey == "" {
		return nil, errors.New("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESEncrypter{aead: aead}, nil
}

// Encrypt seals plaintext and prepends the nonce.
func (e *AESEncrypter) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (e *AESEncrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	return e.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
}

const sealedPrefix = "enc:v1:"

// FieldCipher encodes values for TEXT columns. Without an Encrypter it
// stores plaintext; with one it stores "enc:v1:" plus base64 ciphertext.
// Plaintext rows written before a key was configured stay readable.
type FieldCipher struct {
	enc Encrypter
}

// NewFieldCipher wraps enc. A nil enc disables encryption.
func NewFieldCipher(enc Encrypter) *FieldCipher {
	return &FieldCipher{enc: enc}
}

// Enabled reports whether values are encrypted on write.
func (c *FieldCipher) Enabled() bool {
	return c != nil && c.enc != nil
}

// Seal encodes plaintext for storage.
func (c *FieldCipher) Seal(plaintext []byte) (string, error) {
	if !c.Enabled() {
		return string(plaintext), nil
	}
	ciphertext, err := c.enc.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decodes a stored value.
func (c *FieldCipher) Open(stored string) ([]byte, error) {
	encoded, sealed := strings.CutPrefix(stored, sealedPrefix)
	if !sealed {
		return []byte(stored), nil
	}
	if !c.Enabled() {
		return nil, ErrNoKey
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("sealed value is not valid base64: %w", err)
	}
	return c.enc.Decrypt(ciphertext)
}
