// Package cryptox holds the symmetric primitives used by the key store and
// the field encryption manager: PBKDF2 key-encryption-key derivation and
// AES-256-GCM sealing with a random nonce prepended to the ciphertext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of every DEK and KEK (AES-256).
	KeySize = 32
	// SaltSize is the size of the PBKDF2 salt stored in front of the key store.
	SaltSize = 16
	// NonceSize is the standard AES-GCM nonce length.
	NonceSize = 12
	// MinKDFIterations is the lowest PBKDF2 iteration count accepted for new stores.
	MinKDFIterations = 480_000
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveKEK derives a 32-byte key-encryption-key from the master secret
// with PBKDF2-HMAC-SHA256.
func DeriveKEK(secret, salt []byte, iterations int) []byte {
	return pbkdf2.Key(secret, salt, iterations, KeySize, sha256.New)
}

// GenerateKey returns a fresh random AES-256 key.
func GenerateKey() ([]byte, error) {
	return randomBytes(KeySize)
}

// GenerateSalt returns a fresh random PBKDF2 salt.
func GenerateSalt() ([]byte, error) {
	return randomBytes(SaltSize)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with AES-GCM and returns nonce||ciphertext.
// A new random nonce is drawn on every call, so equal plaintexts never
// produce equal output.
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := randomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open reverses Seal. Any tampering, a wrong key, or wrong additional data
// makes it fail.
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ns := aead.NonceSize()
	if len(sealed) < ns+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	return aead.Open(nil, sealed[:ns], sealed[ns:], additionalData)
}

// EncryptEntry serializes entry to JSON and seals it under key.
//
// The output is nonce||ciphertext as produced by Seal.
func EncryptEntry(entry any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	defer wipe(plaintext)

	return Seal(key, plaintext, nil)
}

// DecryptEntry opens sealed with key and unmarshals the JSON into v.
func DecryptEntry(sealed, key []byte, v any) error {
	plaintext, err := Open(key, sealed, nil)
	if err != nil {
		return err
	}
	defer wipe(plaintext)

	return json.Unmarshal(plaintext, v)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
