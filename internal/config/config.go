// Package config handles payguard configuration: defaults, an optional JSON
// file, PAYGUARD_* environment variables and command-line flags, applied in
// that order.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/cryptox"
	"github.com/dmitrijs2005/payguard/internal/encryption"
	"github.com/dmitrijs2005/payguard/internal/keystore"
	"github.com/dmitrijs2005/payguard/internal/logging"
	"github.com/dmitrijs2005/payguard/internal/passwords"
	"github.com/dmitrijs2005/payguard/internal/ratelimit"
	"github.com/dmitrijs2005/payguard/internal/repomanager"
)

// Config holds runtime settings.
//
// The master secret is not part of Config: it is read from the
// environment or a terminal prompt and never stored in a file.
type Config struct {
	KeysDir             string
	KDFIterations       int
	LegacyKDFIterations []int
	DecryptPolicy       string

	ArgonTime      uint32
	ArgonMemoryKiB uint32
	ArgonThreads   uint8

	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration

	DatabaseDriver string
	DatabaseDSN    string

	S3Bucket       string
	S3Key          string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	LogLevel string
}

// LoadDefaults populates Config with production-safe defaults for a
// single-host deployment.
func (c *Config) LoadDefaults() {
	p := passwords.DefaultParams()
	rl := ratelimit.DefaultConfig()

	c.KeysDir = "."
	c.KDFIterations = cryptox.MinKDFIterations
	c.LegacyKDFIterations = []int{cryptox.MinKDFIterations}
	c.DecryptPolicy = "strict"
	c.ArgonTime = p.Time
	c.ArgonMemoryKiB = p.MemoryKiB
	c.ArgonThreads = p.Threads
	c.MaxAttempts = rl.MaxAttempts
	c.Window = rl.Window
	c.Lockout = rl.Lockout
	c.DatabaseDriver = repomanager.DriverSQLite
	c.DatabaseDSN = "payguard.db"
	c.S3Key = keystore.FileName
	c.S3Region = "us-east-1"
	c.LogLevel = "info"
}

// Validate rejects settings that would weaken key derivation, hashing or
// throttling below the supported minimums.
func (c *Config) Validate() error {
	if c.KDFIterations < cryptox.MinKDFIterations {
		return fmt.Errorf("%w: kdf_iterations must be at least %d", common.ErrorValidation, cryptox.MinKDFIterations)
	}
	if err := c.PasswordParams().Validate(); err != nil {
		return err
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be positive", common.ErrorValidation)
	}
	if c.Window <= 0 || c.Lockout <= 0 {
		return fmt.Errorf("%w: window and lockout must be positive", common.ErrorValidation)
	}
	if _, err := repomanager.New(c.DatabaseDriver); err != nil {
		return err
	}
	if _, err := encryption.ParseDecryptPolicy(c.DecryptPolicy); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

// PasswordParams returns the Argon2id parameters with the standard key and
// salt lengths.
func (c *Config) PasswordParams() passwords.Params {
	p := passwords.DefaultParams()
	p.Time = c.ArgonTime
	p.MemoryKiB = c.ArgonMemoryKiB
	p.Threads = c.ArgonThreads
	return p
}

func (c *Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{MaxAttempts: c.MaxAttempts, Window: c.Window, Lockout: c.Lockout}
}

// MirrorEnabled reports whether the key store is copied to object storage.
func (c *Config) MirrorEnabled() bool {
	return c.S3Bucket != ""
}

func (c *Config) S3() keystore.S3Config {
	return keystore.S3Config{
		Bucket:       c.S3Bucket,
		Key:          c.S3Key,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
	}
}

// Load builds a Config from defaults, the JSON file at path (skipped when
// empty), the environment and finally the flags set on fs (fs may be nil).
func Load(path string, fs *Flags) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path != "" {
		if err := parseJSON(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := fs.Apply(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
