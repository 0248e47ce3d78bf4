// Package encryption provides field-level encryption for short text values
// such as bank account numbers and national IDs.
//
// A Manager is unlocked once per process with the operator's master secret.
// New values are sealed under the primary data key; older keys are kept so
// values written before a rotation stay readable.
package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/cryptox"
	"github.com/dmitrijs2005/payguard/internal/keystore"
	"github.com/dmitrijs2005/payguard/internal/logging"
)

// formatV1 prefixes every ciphertext and is bound as additional data.
const formatV1 byte = 0x01

// DecryptPolicy selects what Decrypt does when no key authenticates the input.
type DecryptPolicy int

const (
	// Strict returns common.ErrDecryptionFailed.
	Strict DecryptPolicy = iota
	// PassThrough returns the input unchanged with a nil error. Corrupted or
	// foreign ciphertext is indistinguishable from plaintext under this policy.
	PassThrough
)

func (p DecryptPolicy) String() string {
	switch p {
	case Strict:
		return "strict"
	case PassThrough:
		return "passthrough"
	default:
		return fmt.Sprintf("DecryptPolicy(%d)", int(p))
	}
}

// ParseDecryptPolicy accepts "strict" and "passthrough" (or "pass-through").
func ParseDecryptPolicy(s string) (DecryptPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "passthrough", "pass-through":
		return PassThrough, nil
	default:
		return Strict, fmt.Errorf("%w: unknown decrypt policy %q", common.ErrorValidation, s)
	}
}

type options struct {
	storeOpts []keystore.StoreOption
	policy    DecryptPolicy
	logger    logging.Logger
}

type Option func(*options)

// WithIterations sets the PBKDF2 iteration count for the key store.
func WithIterations(n int) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, keystore.WithIterations(n)) }
}

// WithLegacyIterations lists older PBKDF2 counts to try when opening the store.
func WithLegacyIterations(n ...int) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, keystore.WithLegacyIterations(n...)) }
}

// WithDecryptPolicy sets what Decrypt does when no key authenticates a value.
func WithDecryptPolicy(p DecryptPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the logger for unlock and rotation events.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the clock used for created_at and rotated_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, keystore.WithClock(now)) }
}

// Manager encrypts and decrypts fields with the unlocked key set.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	keys   *keystore.KeySet
	secret []byte
	store  *keystore.Store
	policy DecryptPolicy
	logger logging.Logger
	closed bool
}

// New unlocks the key store behind backend, creating it with a single fresh
// key if it does not exist yet. A wrong secret or a damaged store yields
// common.ErrInvalidMasterKey; an empty secret yields common.ErrConfiguration.
func New(ctx context.Context, masterSecret []byte, backend keystore.Backend, opts ...Option) (*Manager, error) {
	if len(masterSecret) == 0 {
		return nil, common.ErrConfiguration
	}

	o := options{policy: Strict, logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	store := keystore.NewStore(backend, o.storeOpts...)
	secret := append([]byte(nil), masterSecret...)

	ks, created, err := store.Open(ctx, secret)
	if err != nil {
		common.WipeByteArray(secret)
		if errors.Is(err, common.ErrInvalidMasterKey) {
			o.logger.Warn(ctx, "key store unlock failed", "location", backend.Location())
		}
		return nil, err
	}

	if created {
		o.logger.Info(ctx, "key store created", "location", backend.Location())
	} else {
		o.logger.Info(ctx, "key store unlocked", "location", backend.Location(), "keys", len(ks.Keys))
	}

	return &Manager{
		keys:   ks,
		secret: secret,
		store:  store,
		policy: o.policy,
		logger: o.logger,
	}, nil
}

// Encrypt seals plaintext under the primary key. The empty string is
// returned unchanged. Output is URL-safe base64 of version||nonce||ciphertext.
func (m *Manager) Encrypt(plaintext string) (string, error) {
	if m == nil {
		return "", common.ErrConfiguration
	}
	if plaintext == "" {
		return "", nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", common.ErrConfiguration
	}

	ad := []byte{formatV1}
	sealed, err := cryptox.Seal(m.keys.Primary(), []byte(plaintext), ad)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	out := make([]byte, 0, 1+len(sealed))
	out = append(out, formatV1)
	out = append(out, sealed...)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt, trying every retained key newest first. The empty
// string is returned unchanged. When nothing authenticates, the result
// depends on the configured DecryptPolicy.
func (m *Manager) Decrypt(ciphertext string) (string, error) {
	if m == nil {
		return "", common.ErrConfiguration
	}
	if ciphertext == "" {
		return "", nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", common.ErrConfiguration
	}

	if plaintext, ok := m.open(ciphertext); ok {
		return plaintext, nil
	}

	if m.policy == PassThrough {
		return ciphertext, nil
	}
	return "", common.ErrDecryptionFailed
}

// open must be called with m.mu held.
func (m *Manager) open(ciphertext string) (string, bool) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < 1 || raw[0] != formatV1 {
		return "", false
	}

	ad := raw[:1]
	sealed := raw[1:]

	for _, k := range m.keys.Keys {
		plaintext, err := cryptox.Open(k, sealed, ad)
		if err == nil {
			return string(plaintext), true
		}
	}
	return "", false
}

// RotateKey makes a fresh key primary and persists the key store. Previous
// keys are kept. If saving fails the manager keeps using the old key set.
func (m *Manager) RotateKey(ctx context.Context) error {
	if m == nil {
		return common.ErrConfiguration
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return common.ErrConfiguration
	}

	key, err := cryptox.GenerateKey()
	if err != nil {
		return fmt.Errorf("rotate key: %w", err)
	}

	next := &keystore.KeySet{
		Keys:          append([][]byte{key}, m.keys.Keys...),
		CreatedAt:     m.keys.CreatedAt,
		RotatedAt:     m.store.Now().UTC(),
		KDFIterations: m.keys.KDFIterations,
	}
	if err := m.store.Save(ctx, m.secret, next); err != nil {
		m.logger.Error(ctx, "key rotation failed", "error", err)
		return fmt.Errorf("rotate key: %w", err)
	}

	m.keys = next
	m.logger.Info(ctx, "encryption key rotated", "keys", len(next.Keys))
	return nil
}

// KeyCount returns the number of retained keys, primary included.
func (m *Manager) KeyCount() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0
	}
	return len(m.keys.Keys)
}

// Status describes the unlocked key set without exposing key material.
type Status struct {
	Location      string
	Keys          int
	KDFIterations int
	CreatedAt     time.Time
	RotatedAt     time.Time
}

func (m *Manager) Status() (Status, error) {
	if m == nil {
		return Status{}, common.ErrConfiguration
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Status{}, common.ErrConfiguration
	}
	return Status{
		Location:      m.store.Backend().Location(),
		Keys:          len(m.keys.Keys),
		KDFIterations: m.keys.KDFIterations,
		CreatedAt:     m.keys.CreatedAt,
		RotatedAt:     m.keys.RotatedAt,
	}, nil
}

// Close wipes the master secret and key material held in memory. Every
// later call fails with common.ErrConfiguration. Close is idempotent.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	common.WipeByteArray(m.secret)
	for _, k := range m.keys.Keys {
		common.WipeByteArray(k)
	}
}

// Closed reports whether Close has been called.
func (m *Manager) Closed() bool {
	if m == nil {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
