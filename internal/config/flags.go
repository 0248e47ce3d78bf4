package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags binds the configuration flags to a pflag.FlagSet. Only flags the
// user actually set override earlier layers.
type Flags struct {
	fs *pflag.FlagSet

	keysDir        string
	kdfIterations  int
	decryptPolicy  string
	argonTime      uint32
	argonMemory    uint32
	argonThreads   uint8
	maxAttempts    int
	window         time.Duration
	lockout        time.Duration
	dbDriver       string
	dsn            string
	s3Bucket       string
	s3Key          string
	s3Region       string
	s3BaseEndpoint string
	s3AccessKey    string
	s3SecretKey    string
	logLevel       string
}

// RegisterFlags adds the configuration flags to fs. Defaults shown in help
// come from LoadDefaults.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	d := &Config{}
	d.LoadDefaults()

	f := &Flags{fs: fs}
	fs.StringVar(&f.keysDir, "keys-dir", d.KeysDir, "directory holding encryption_keys.dat")
	fs.IntVar(&f.kdfIterations, "kdf-iterations", d.KDFIterations, "PBKDF2 iterations for the key store")
	fs.StringVar(&f.decryptPolicy, "decrypt-policy", d.DecryptPolicy, "on undecryptable input: strict or passthrough")
	fs.Uint32Var(&f.argonTime, "argon-time", d.ArgonTime, "Argon2id time cost")
	fs.Uint32Var(&f.argonMemory, "argon-memory", d.ArgonMemoryKiB, "Argon2id memory cost in KiB")
	fs.Uint8Var(&f.argonThreads, "argon-threads", d.ArgonThreads, "Argon2id parallelism")
	fs.IntVar(&f.maxAttempts, "max-attempts", d.MaxAttempts, "failed logins before lockout")
	fs.DurationVar(&f.window, "window", d.Window, "failed-login counting window")
	fs.DurationVar(&f.lockout, "lockout", d.Lockout, "lockout duration")
	fs.StringVar(&f.dbDriver, "db-driver", d.DatabaseDriver, "database driver: sqlite or postgres")
	fs.StringVar(&f.dsn, "dsn", d.DatabaseDSN, "database DSN")
	fs.StringVar(&f.s3Bucket, "s3-bucket", d.S3Bucket, "S3 bucket for the key store mirror (empty disables)")
	fs.StringVar(&f.s3Key, "s3-key", d.S3Key, "object key of the mirrored key store")
	fs.StringVar(&f.s3Region, "s3-region", d.S3Region, "S3 region")
	fs.StringVar(&f.s3BaseEndpoint, "s3-endpoint", d.S3BaseEndpoint, "S3-compatible endpoint URL (e.g. MinIO)")
	fs.StringVar(&f.s3AccessKey, "s3-access-key", d.S3AccessKey, "S3 access key")
	fs.StringVar(&f.s3SecretKey, "s3-secret-key", d.S3SecretKey, "S3 secret key")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "log level: debug, info, warn, error")
	return f
}

// Apply copies every flag that was set on the command line into c.
func (f *Flags) Apply(c *Config) error {
	set := func(name string, apply func()) {
		if f.fs.Changed(name) {
			apply()
		}
	}

	set("keys-dir", func() { c.KeysDir = f.keysDir })
	set("kdf-iterations", func() { c.KDFIterations = f.kdfIterations })
	set("decrypt-policy", func() { c.DecryptPolicy = f.decryptPolicy })
	set("argon-time", func() { c.ArgonTime = f.argonTime })
	set("argon-memory", func() { c.ArgonMemoryKiB = f.argonMemory })
	set("argon-threads", func() { c.ArgonThreads = f.argonThreads })
	set("max-attempts", func() { c.MaxAttempts = f.maxAttempts })
	set("window", func() { c.Window = f.window })
	set("lockout", func() { c.Lockout = f.lockout })
	set("db-driver", func() { c.DatabaseDriver = f.dbDriver })
	set("dsn", func() { c.DatabaseDSN = f.dsn })
	set("s3-bucket", func() { c.S3Bucket = f.s3Bucket })
	set("s3-key", func() { c.S3Key = f.s3Key })
	set("s3-region", func() { c.S3Region = f.s3Region })
	set("s3-endpoint", func() { c.S3BaseEndpoint = f.s3BaseEndpoint })
	set("s3-access-key", func() { c.S3AccessKey = f.s3AccessKey })
	set("s3-secret-key", func() { c.S3SecretKey = f.s3SecretKey })
	set("log-level", func() { c.LogLevel = f.logLevel })
	return nil
}
