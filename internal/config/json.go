package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/payguard/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Intervals use timex.Duration so
// both "5m" and integer nanoseconds are accepted.
type JsonConfig struct {
	KeysDir             string         `json:"keys_dir"`
	KDFIterations       int            `json:"kdf_iterations"`
	LegacyKDFIterations []int          `json:"legacy_kdf_iterations"`
	DecryptPolicy       string         `json:"decrypt_policy"`
	ArgonTime           uint32         `json:"argon_time"`
	ArgonMemoryKiB      uint32         `json:"argon_memory_kib"`
	ArgonThreads        uint8          `json:"argon_threads"`
	MaxAttempts         int            `json:"max_attempts"`
	Window              timex.Duration `json:"window"`
	Lockout             timex.Duration `json:"lockout"`
	DatabaseDriver      string         `json:"database_driver"`
	DatabaseDSN         string         `json:"database_dsn"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Key               string         `json:"s3_key"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	LogLevel            string         `json:"log_level"`
}

// parseJSON overlays the keys present in the file at path onto config.
// Keys missing from the file keep their current values.
func parseJSON(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{
		KeysDir:             config.KeysDir,
		KDFIterations:       config.KDFIterations,
		LegacyKDFIterations: config.LegacyKDFIterations,
		DecryptPolicy:       config.DecryptPolicy,
		ArgonTime:           config.ArgonTime,
		ArgonMemoryKiB:      config.ArgonMemoryKiB,
		ArgonThreads:        config.ArgonThreads,
		MaxAttempts:         config.MaxAttempts,
		Window:              timex.Duration{Duration: config.Window},
		Lockout:             timex.Duration{Duration: config.Lockout},
		DatabaseDriver:      config.DatabaseDriver,
		DatabaseDSN:         config.DatabaseDSN,
		S3Bucket:            config.S3Bucket,
		S3Key:               config.S3Key,
		S3Region:            config.S3Region,
		S3BaseEndpoint:      config.S3BaseEndpoint,
		S3AccessKey:         config.S3AccessKey,
		S3SecretKey:         config.S3SecretKey,
		LogLevel:            config.LogLevel,
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	config.KeysDir = c.KeysDir
	config.KDFIterations = c.KDFIterations
	config.LegacyKDFIterations = c.LegacyKDFIterations
	config.DecryptPolicy = c.DecryptPolicy
	config.ArgonTime = c.ArgonTime
	config.ArgonMemoryKiB = c.ArgonMemoryKiB
	config.ArgonThreads = c.ArgonThreads
	config.MaxAttempts = c.MaxAttempts
	config.Window = c.Window.Duration
	config.Lockout = c.Lockout.Duration
	config.DatabaseDriver = c.DatabaseDriver
	config.DatabaseDSN = c.DatabaseDSN
	config.S3Bucket = c.S3Bucket
	config.S3Key = c.S3Key
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.LogLevel = c.LogLevel
	return nil
}
