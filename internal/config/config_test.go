package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/passwords"
	"github.com/dmitrijs2005/payguard/internal/ratelimit"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ".", c.KeysDir)
	assert.Equal(t, 480000, c.KDFIterations)
	assert.Equal(t, []int{480000}, c.LegacyKDFIterations)
	assert.Equal(t, "strict", c.DecryptPolicy)
	assert.Equal(t, passwords.DefaultParams(), c.PasswordParams())
	assert.Equal(t, ratelimit.Config{MaxAttempts: 5, Window: 300 * time.Second, Lockout: 300 * time.Second}, c.RateLimit())
	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, "payguard.db", c.DatabaseDSN)
	assert.False(t, c.MirrorEnabled())
	assert.Equal(t, "info", c.LogLevel)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"low iterations", func(c *Config) { c.KDFIterations = 100_000 }},
		{"low memory", func(c *Config) { c.ArgonMemoryKiB = 1024 }},
		{"zero threads", func(c *Config) { c.ArgonThreads = 0 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"zero window", func(c *Config) { c.Window = 0 }},
		{"negative lockout", func(c *Config) { c.Lockout = -time.Second }},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"unknown policy", func(c *Config) { c.DecryptPolicy = "lenient" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), common.ErrorValidation)
		})
	}
}

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payguard.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseJSON_OverlaysPresentKeys(t *testing.T) {
	path := writeJSON(t, `{
		"keys_dir": "/var/lib/payguard",
		"window": "10m",
		"lockout": 60000000000,
		"legacy_kdf_iterations": [480000, 600000],
		"database_driver": "postgres",
		"database_dsn": "postgres://payguard@db/payguard",
		"s3_bucket": "payguard-keys"
	}`)

	c := defaults()
	require.NoError(t, parseJSON(c, path))

	want := defaults()
	want.KeysDir = "/var/lib/payguard"
	want.Window = 10 * time.Minute
	want.Lockout = time.Minute
	want.LegacyKDFIterations = []int{480000, 600000}
	want.DatabaseDriver = "postgres"
	want.DatabaseDSN = "postgres://payguard@db/payguard"
	want.S3Bucket = "payguard-keys"

	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, c.MirrorEnabled())
}

func TestParseJSON_Errors(t *testing.T) {
	c := defaults()
	assert.Error(t, parseJSON(c, filepath.Join(t.TempDir(), "missing.json")))
	assert.Error(t, parseJSON(c, writeJSON(t, `{"window": "soon"}`)))
	assert.Error(t, parseJSON(c, writeJSON(t, `not json`)))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PAYGUARD_KEYS_DIR":       "/keys",
		"PAYGUARD_KDF_ITERATIONS": "600000",
		"PAYGUARD_DECRYPT_POLICY": "passthrough",
		"PAYGUARD_DB_DRIVER":      "postgres",
		"PAYGUARD_LOG_LEVEL":      "debug",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c := defaults()
	require.NoError(t, applyEnv(c, lookup))
	assert.Equal(t, "/keys", c.KeysDir)
	assert.Equal(t, 600000, c.KDFIterations)
	assert.Equal(t, "passthrough", c.DecryptPolicy)
	assert.Equal(t, "postgres", c.DatabaseDriver)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "payguard.db", c.DatabaseDSN)

	env["PAYGUARD_KDF_ITERATIONS"] = "lots"
	assert.ErrorIs(t, applyEnv(defaults(), lookup), common.ErrorValidation)
}

func TestFlags_OnlyChangedOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--keys-dir", "/flags", "--max-attempts", "3", "--window", "1m"}))

	c := defaults()
	c.DatabaseDSN = "from-json.db"
	require.NoError(t, f.Apply(c))

	assert.Equal(t, "/flags", c.KeysDir)
	assert.Equal(t, 3, c.MaxAttempts)
	assert.Equal(t, time.Minute, c.Window)
	assert.Equal(t, "from-json.db", c.DatabaseDSN, "unset flags keep earlier layers")
}

func TestLoad_Layering(t *testing.T) {
	path := writeJSON(t, `{"keys_dir": "/json", "database_dsn": "json.db", "log_level": "warn"}`)

	orig := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		if k == "PAYGUARD_DATABASE_DSN" {
			return "env.db", true
		}
		return "", false
	}
	t.Cleanup(func() { lookupEnv = orig })

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level", "error"}))

	c, err := Load(path, f)
	require.NoError(t, err)
	assert.Equal(t, "/json", c.KeysDir)
	assert.Equal(t, "env.db", c.DatabaseDSN)
	assert.Equal(t, "error", c.LogLevel)
}

func TestLoad_InvalidResult(t *testing.T) {
	path := writeJSON(t, `{"kdf_iterations": 1000}`)
	_, err := Load(path, nil)
	assert.ErrorIs(t, err, common.ErrorValidation)
}
