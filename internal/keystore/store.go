package keystore

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/cryptox"
)

// Store loads and saves KeySets through a Backend.
type Store struct {
	backend    Backend
	iterations int
	legacy     []int
	now        func() time.Time
}

type StoreOption func(*Store)

// WithIterations sets the PBKDF2 iteration count used for saving and tried
// first on load.
func WithIterations(n int) StoreOption {
	return func(s *Store) { s.iterations = n }
}

// WithLegacyIterations lists older iteration counts to try when the current
// one does not open an existing store.
func WithLegacyIterations(n ...int) StoreOption {
	return func(s *Store) { s.legacy = append([]int(nil), n...) }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend:    backend,
		iterations: cryptox.MinKDFIterations,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Backend() Backend {
	return s.backend
}

// Open unseals the existing store, or creates one holding a single fresh
// key when none exists. created reports which happened.
func (s *Store) Open(ctx context.Context, secret []byte) (ks *KeySet, created bool, err error) {
	data, err := s.backend.Load(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		ks, err = s.create(ctx, secret)
		return ks, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}

	counts := append([]int{s.iterations}, s.legacy...)
	ks, err = Unseal(secret, data, counts...)
	if err != nil {
		return nil, false, err
	}
	return ks, false, nil
}

func (s *Store) create(ctx context.Context, secret []byte) (*KeySet, error) {
	key, err := cryptox.GenerateKey()
	if err != nil {
		return nil, err
	}

	ks := &KeySet{Keys: [][]byte{key}, CreatedAt: s.now().UTC()}
	if err := s.Save(ctx, secret, ks); err != nil {
		return nil, err
	}
	return ks, nil
}

// Save seals ks with a fresh salt and the configured iteration count and
// hands it to the backend. ks.KDFIterations is updated on success.
func (s *Store) Save(ctx context.Context, secret []byte, ks *KeySet) error {
	data, err := Seal(secret, ks, s.iterations)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, data); err != nil {
		return err
	}
	ks.KDFIterations = s.iterations
	return nil
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}
