package encryption

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/keystore"
)

// SecretSource supplies the master secret when the Provider first needs it.
type SecretSource func(ctx context.Context) ([]byte, error)

// StaticSecret returns a source that always yields a copy of secret.
func StaticSecret(secret []byte) SecretSource {
	return func(context.Context) ([]byte, error) {
		if len(secret) == 0 {
			return nil, common.ErrConfiguration
		}
		return append([]byte(nil), secret...), nil
	}
}

// EnvSecret reads the master secret from the named environment variable.
func EnvSecret(name string) SecretSource {
	return func(context.Context) ([]byte, error) {
		v := os.Getenv(name)
		if v == "" {
			return nil, common.ErrConfiguration
		}
		return []byte(v), nil
	}
}

// Provider builds a Manager at most once per process. Concurrent callers of
// Get wait for the first initialization and share its result. A failed
// attempt is not cached, so a later Get can succeed once a correct secret
// is available.
type Provider struct {
	source  SecretSource
	backend keystore.Backend
	opts    []Option

	mu      sync.Mutex
	manager atomic.Pointer[Manager]
}

func NewProvider(source SecretSource, backend keystore.Backend, opts ...Option) *Provider {
	return &Provider{source: source, backend: backend, opts: opts}
}

// Get returns the shared Manager, initializing it on first use. A Manager
// closed by its holder is dropped and replaced.
func (p *Provider) Get(ctx context.Context) (*Manager, error) {
	if m := p.manager.Load(); m != nil && !m.Closed() {
		return m, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if m := p.manager.Load(); m != nil && !m.Closed() {
		return m, nil
	}
	p.manager.Store(nil)

	if p.source == nil {
		return nil, common.ErrConfiguration
	}
	secret, err := p.source(ctx)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret)

	m, err := New(ctx, secret, p.backend, p.opts...)
	if err != nil {
		return nil, err
	}

	p.manager.Store(m)
	return m, nil
}

// Initialized reports whether an open Manager is held.
func (p *Provider) Initialized() bool {
	m := p.manager.Load()
	return m != nil && !m.Closed()
}

// Close wipes and drops the held Manager. A later Get unlocks the store again.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m := p.manager.Swap(nil); m != nil {
		m.Close()
	}
}
