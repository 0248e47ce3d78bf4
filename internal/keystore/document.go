// Package keystore persists the set of data-encryption keys (DEKs) encrypted
// under a key-encryption-key derived from the operator's master secret.
//
// On-disk layout:
//
//	[0:16]   PBKDF2 salt
//	[16:28]  AES-GCM nonce
//	[28:]    AES-GCM ciphertext+tag of the JSON Document
//
// keys[0] in the document is the primary key. Old keys are never removed,
// so data sealed under any historical key stays readable.
package keystore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/cryptox"
)

// DocumentVersion is written into every saved document.
const DocumentVersion = 2

// Document is the JSON structure sealed inside the key-store file.
type Document struct {
	Version       int        `json:"version"`
	KDFIterations int        `json:"kdf_iterations,omitempty"`
	Keys          []string   `json:"keys"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	RotatedAt     *time.Time `json:"rotated_at,omitempty"`
}

// KeySet is the decoded, in-memory form of a Document.
type KeySet struct {
	// Keys holds raw DEKs, newest (primary) first.
	Keys      [][]byte
	CreatedAt time.Time
	RotatedAt time.Time
	// KDFIterations is the PBKDF2 cost the set was last sealed with.
	KDFIterations int
}

// Primary returns the key used for new encryptions.
func (ks *KeySet) Primary() []byte {
	if ks == nil || len(ks.Keys) == 0 {
		return nil
	}
	return ks.Keys[0]
}

func (ks *KeySet) toDocument(iterations int) *Document {
	doc := &Document{
		Version:       DocumentVersion,
		KDFIterations: iterations,
		Keys:          make([]string, 0, len(ks.Keys)),
	}
	for _, k := range ks.Keys {
		doc.Keys = append(doc.Keys, base64.URLEncoding.EncodeToString(k))
	}
	if !ks.CreatedAt.IsZero() {
		t := ks.CreatedAt.UTC()
		doc.CreatedAt = &t
	}
	if !ks.RotatedAt.IsZero() {
		t := ks.RotatedAt.UTC()
		doc.RotatedAt = &t
	}
	return doc
}

func (doc *Document) toKeySet(iterations int) (*KeySet, error) {
	if len(doc.Keys) == 0 {
		return nil, errors.New("key store holds no keys")
	}

	ks := &KeySet{KDFIterations: iterations}
	for i, enc := range doc.Keys {
		k, err := base64.URLEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		if len(k) != cryptox.KeySize {
			return nil, fmt.Errorf("key %d: unexpected size %d", i, len(k))
		}
		ks.Keys = append(ks.Keys, k)
	}
	if doc.CreatedAt != nil {
		ks.CreatedAt = *doc.CreatedAt
	}
	if doc.RotatedAt != nil {
		ks.RotatedAt = *doc.RotatedAt
	}
	return ks, nil
}

// Seal encodes ks into the binary key-store layout. A new salt is drawn on
// every call.
func Seal(secret []byte, ks *KeySet, iterations int) ([]byte, error) {
	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return nil, err
	}

	kek := cryptox.DeriveKEK(secret, salt, iterations)
	defer common.WipeByteArray(kek)

	sealed, err := cryptox.EncryptEntry(ks.toDocument(iterations), kek)
	if err != nil {
		return nil, fmt.Errorf("seal key store: %w", err)
	}

	out := make([]byte, 0, len(salt)+len(sealed))
	out = append(out, salt...)
	return append(out, sealed...), nil
}

// Unseal decodes data produced by Seal. Each iteration count is tried in
// order; the first that authenticates wins. Any failure, whether a wrong
// secret or a damaged file, is reported as common.ErrInvalidMasterKey.
func Unseal(secret, data []byte, iterations ...int) (*KeySet, error) {
	if len(data) <= cryptox.SaltSize {
		return nil, common.ErrInvalidMasterKey
	}
	salt, sealed := data[:cryptox.SaltSize], data[cryptox.SaltSize:]

	tried := make(map[int]struct{}, len(iterations))
	for _, it := range iterations {
		if it <= 0 {
			continue
		}
		if _, ok := tried[it]; ok {
			continue
		}
		tried[it] = struct{}{}

		kek := cryptox.DeriveKEK(secret, salt, it)
		var doc Document
		err := cryptox.DecryptEntry(sealed, kek, &doc)
		common.WipeByteArray(kek)
		if err != nil {
			continue
		}

		ks, err := doc.toKeySet(it)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidMasterKey, err)
		}
		return ks, nil
	}

	return nil, common.ErrInvalidMasterKey
}
