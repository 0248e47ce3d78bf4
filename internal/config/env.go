package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dmitrijs2005/payguard/internal/common"
)

// EnvPrefix prefixes every environment variable read by payguard.
const EnvPrefix = "PAYGUARD_"

// EnvMasterSecret holds the master secret for non-interactive use.
const EnvMasterSecret = EnvPrefix + "MASTER_SECRET"

// EnvConfigFile names a JSON config file when --config is not given.
const EnvConfigFile = EnvPrefix + "CONFIG"

var lookupEnv = os.LookupEnv

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"KEYS_DIR":         &c.KeysDir,
		"DECRYPT_POLICY":   &c.DecryptPolicy,
		"DB_DRIVER":        &c.DatabaseDriver,
		"DATABASE_DSN":     &c.DatabaseDSN,
		"S3_BUCKET":        &c.S3Bucket,
		"S3_KEY":           &c.S3Key,
		"S3_REGION":        &c.S3Region,
		"S3_BASE_ENDPOINT": &c.S3BaseEndpoint,
		"S3_ACCESS_KEY":    &c.S3AccessKey,
		"S3_SECRET_KEY":    &c.S3SecretKey,
		"LOG_LEVEL":        &c.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "KDF_ITERATIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sKDF_ITERATIONS: %v", common.ErrorValidation, EnvPrefix, err)
		}
		c.KDFIterations = n
	}
	return nil
}
