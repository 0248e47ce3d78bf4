// Package app wires configuration, logging, storage and the security
// services into one handle shared by the command-line front end.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/payguard/internal/auth"
	"github.com/dmitrijs2005/payguard/internal/config"
	"github.com/dmitrijs2005/payguard/internal/encryption"
	"github.com/dmitrijs2005/payguard/internal/keystore"
	"github.com/dmitrijs2005/payguard/internal/logging"
	"github.com/dmitrijs2005/payguard/internal/passwords"
	"github.com/dmitrijs2005/payguard/internal/ratelimit"
	"github.com/dmitrijs2005/payguard/internal/repomanager"
)

// newS3Client is a seam for tests.
var newS3Client = func(ctx context.Context, c keystore.S3Config) (keystore.ObjectAPI, error) {
	return keystore.NewS3Client(ctx, c)
}

// App owns the long-lived services. Encryption and the database are opened
// lazily, so commands that need neither never prompt for a secret or touch
// the database.
type App struct {
	config  *config.Config
	logger  logging.Logger
	backend keystore.Backend
	file    *keystore.FileBackend
	mirror  *keystore.S3Mirror

	encryption *encryption.Provider
	passwords  *passwords.Manager
	limiter    *ratelimit.Limiter

	mu   sync.Mutex
	db   *sql.DB
	gate *auth.Gate
}

// NewApp builds the service graph for cfg. secret is consulted the first
// time encryption is needed.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger, secret encryption.SecretSource) (*App, error) {
	policy, err := encryption.ParseDecryptPolicy(cfg.DecryptPolicy)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:    cfg,
		logger:    logger,
		file:      keystore.NewFileBackend(cfg.KeysDir),
		passwords: passwords.NewManager(cfg.PasswordParams()),
		limiter:   ratelimit.New(cfg.RateLimit()),
	}
	a.backend = a.file

	if cfg.MirrorEnabled() {
		client, err := newS3Client(ctx, cfg.S3())
		if err != nil {
			return nil, fmt.Errorf("s3 mirror init error: %w", err)
		}
		a.mirror = keystore.NewS3Mirror(a.file, client, cfg.S3Bucket, cfg.S3Key, logger)
		a.backend = a.mirror
	}

	a.encryption = encryption.NewProvider(secret, a.backend,
		encryption.WithIterations(cfg.KDFIterations),
		encryption.WithLegacyIterations(cfg.LegacyKDFIterations...),
		encryption.WithDecryptPolicy(policy),
		encryption.WithLogger(logger),
	)

	return a, nil
}

func (a *App) Config() *config.Config { return a.config }

func (a *App) Logger() logging.Logger { return a.logger }

// Encryption returns the process-wide encryption manager, unlocking the key
// store on first use.
func (a *App) Encryption(ctx context.Context) (*encryption.Manager, error) {
	return a.encryption.Get(ctx)
}

func (a *App) Passwords() *passwords.Manager { return a.passwords }

// KeyStorePath is the local key-store file.
func (a *App) KeyStorePath() string { return a.file.Location() }

// RestoreKeys pulls the mirrored key store into KeysDir.
func (a *App) RestoreKeys(ctx context.Context) error {
	if a.mirror == nil {
		return errors.New("key store mirror is not configured (set s3_bucket)")
	}
	if err := a.mirror.Restore(ctx); err != nil {
		return err
	}
	a.logger.Info(ctx, "key store restored from mirror", "location", a.file.Location())
	return nil
}

// Gate returns the login gate, opening the database and running migrations
// on first use.
func (a *App) Gate(ctx context.Context) (*auth.Gate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.gate != nil {
		return a.gate, nil
	}

	db, rm, err := repomanager.Open(ctx, a.config.DatabaseDriver, a.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	// Pay the dummy-hash cost before the first login.
	a.passwords.DummyHash()

	a.db = db
	a.gate = auth.NewGate(db, rm, a.passwords, a.limiter, a.logger)
	return a.gate, nil
}

// Close releases the database and wipes unlocked key material.
func (a *App) Close() error {
	a.encryption.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		err := a.db.Close()
		a.db, a.gate = nil, nil
		return err
	}
	return nil
}
