// Package passwords hashes and verifies user passwords with Argon2id.
//
// Hashes use the PHC string format shared with argon2-cffi and libsodium:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<digest>
//
// with salt and digest in unpadded standard base64.
package passwords

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/payguard/internal/common"
)

const algorithm = "argon2id"

// Upper bounds accepted when parsing a stored hash, so a crafted value cannot
// make Verify allocate gigabytes.
const (
	maxMemoryKiB = 4 * 1024 * 1024
	maxTime      = 64
	maxKeyLen    = 1024
	maxSaltLen   = 1024
)

// MinMemoryKiB is the smallest memory cost accepted by Validate.
const MinMemoryKiB = 64 * 1024

// Params are the Argon2id cost parameters.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   uint32
}

// DefaultParams matches the OWASP recommendation used across the payroll tool.
func DefaultParams() Params {
	return Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}
}

// Validate rejects parameters too weak for production use.
func (p Params) Validate() error {
	switch {
	case p.Time < 1:
		return fmt.Errorf("%w: argon2 time must be at least 1", common.ErrorValidation)
	case p.MemoryKiB < MinMemoryKiB:
		return fmt.Errorf("%w: argon2 memory must be at least %d KiB", common.ErrorValidation, MinMemoryKiB)
	case p.Threads < 1:
		return fmt.Errorf("%w: argon2 threads must be at least 1", common.ErrorValidation)
	case p.KeyLen < 16:
		return fmt.Errorf("%w: argon2 key length must be at least 16", common.ErrorValidation)
	case p.SaltLen < 8:
		return fmt.Errorf("%w: argon2 salt length must be at least 8", common.ErrorValidation)
	}
	return nil
}

// Manager hashes passwords with a fixed target parameter set.
type Manager struct {
	params Params

	dummyOnce sync.Once
	dummy     string
}

// NewManager does not validate p; callers that load p from configuration
// should call Params.Validate first.
func NewManager(p Params) *Manager {
	return &Manager{params: p}
}

func (m *Manager) Params() Params {
	return m.params
}

// Hash returns the PHC string for password with a fresh random salt.
func (m *Manager) Hash(password string) (string, error) {
	salt := make([]byte, m.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, m.params.Time, m.params.MemoryKiB, m.params.Threads, m.params.KeyLen)
	return encode(m.params, salt, key), nil
}

// Verify reports whether password matches encoded. The parameters stored in
// encoded are used, so hashes created under older settings still verify.
// Malformed input returns false.
func (m *Manager) Verify(password, encoded string) bool {
	h, err := decode(encoded)
	if err != nil {
		return false
	}

	key := argon2.IDKey([]byte(password), h.salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)
	return subtle.ConstantTimeCompare(key, h.key) == 1
}

// NeedsRehash reports whether encoded was produced with parameters other
// than the manager's current ones. Malformed input needs a rehash.
func (m *Manager) NeedsRehash(encoded string) bool {
	h, err := decode(encoded)
	if err != nil {
		return true
	}
	return h.params != m.params
}

// DummyHash returns a hash of a random password made with the current
// parameters. Verifying against it costs the same as a real verification.
func (m *Manager) DummyHash() string {
	m.dummyOnce.Do(func() {
		pw, err := common.MakeRandHexString(16)
		if err != nil {
			pw = "payguard-dummy-password"
		}
		h, err := m.Hash(pw)
		if err != nil {
			// Still a well-formed hash with the right cost; it just never matches.
			h = encode(m.params, make([]byte, m.params.SaltLen), make([]byte, m.params.KeyLen))
		}
		m.dummy = h
	})
	return m.dummy
}

type parsed struct {
	params Params
	salt   []byte
	key    []byte
}

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decode(encoded string) (*parsed, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: malformed hash", common.ErrorValidation)
	}
	if parts[1] != algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", common.ErrorValidation, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || fmt.Sprintf("v=%d", version) != parts[2] {
		return nil, fmt.Errorf("%w: bad version %q", common.ErrorValidation, parts[2])
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %d", common.ErrorValidation, version)
	}

	var mem, t uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &t, &threads); err != nil {
		return nil, fmt.Errorf("%w: bad parameters: %v", common.ErrorValidation, err)
	}
	// Sscanf stops at the last verb; trailing input must not slip through.
	if fmt.Sprintf("m=%d,t=%d,p=%d", mem, t, threads) != parts[3] {
		return nil, fmt.Errorf("%w: bad parameters %q", common.ErrorValidation, parts[3])
	}
	if t < 1 || t > maxTime || mem < 8*uint32(threads) || mem > maxMemoryKiB || threads < 1 {
		return nil, fmt.Errorf("%w: parameters out of range", common.ErrorValidation)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 || len(salt) > maxSaltLen {
		return nil, fmt.Errorf("%w: bad salt", common.ErrorValidation)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < 4 || len(key) > maxKeyLen {
		return nil, fmt.Errorf("%w: bad digest", common.ErrorValidation)
	}

	return &parsed{
		params: Params{
			Time:      t,
			MemoryKiB: mem,
			Threads:   threads,
			KeyLen:    uint32(len(key)),
			SaltLen:   uint32(len(salt)),
		},
		salt: salt,
		key:  key,
	}, nil
}
