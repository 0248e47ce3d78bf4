package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/config"
)

const testSecret = "correct-secret-1234"

// env is one payguard installation: a keys dir and a database shared by
// every command run against it.
type env struct {
	t         *testing.T
	keysDir   string
	dsn       string
	passwords []string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	t.Setenv(config.EnvMasterSecret, testSecret)

	origLoad := loadConfig
	loadConfig = func(path string, fs *config.Flags) (*config.Config, error) {
		cfg, err := origLoad(path, fs)
		if err != nil {
			return nil, err
		}
		cfg.KDFIterations = 1000
		cfg.LegacyKDFIterations = nil
		cfg.ArgonTime = 1
		cfg.ArgonMemoryKiB = 1024
		cfg.ArgonThreads = 1
		return cfg, nil
	}

	e := &env{t: t, keysDir: filepath.Join(dir, "keys"), dsn: filepath.Join(dir, "payguard.db")}

	origRead := readPassword
	readPassword = func(int) ([]byte, error) {
		require.NotEmpty(t, e.passwords, "unexpected password prompt")
		pw := e.passwords[0]
		e.passwords = e.passwords[1:]
		return []byte(pw), nil
	}

	t.Cleanup(func() {
		loadConfig = origLoad
		readPassword = origRead
	})
	return e
}

// run executes one command with stdin and returns stdout.
func (e *env) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	c := New(strings.NewReader(stdin), &out, &errOut)
	defer c.Close()

	root := c.RootCommand()
	root.SetArgs(append([]string{"--keys-dir", e.keysDir, "--dsn", e.dsn, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run("", args...)
	require.NoError(e.t, err)
	return out
}

func TestKeysInit(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun("keys", "init")
	assert.Contains(t, out, "key store created")
	assert.FileExists(t, filepath.Join(e.keysDir, "encryption_keys.dat"))

	out = e.mustRun("keys", "init")
	assert.Contains(t, out, "key store unlocked")
	assert.Contains(t, out, "(1 keys)")
}

func TestEncryptDecryptAcrossRuns(t *testing.T) {
	e := newEnv(t)

	ct := strings.TrimSpace(e.mustRun("encrypt", "6222021234567890123"))
	require.NotEmpty(t, ct)
	assert.NotContains(t, ct, "6222021234567890123")

	out := e.mustRun("decrypt", ct)
	assert.Equal(t, "6222021234567890123\n", out)
}

func TestRotateKeepsOldCiphertextReadable(t *testing.T) {
	e := newEnv(t)

	ct := strings.TrimSpace(e.mustRun("encrypt", "salary:85000"))

	out := e.mustRun("keys", "rotate")
	assert.Contains(t, out, "2 keys retained")

	assert.Equal(t, "salary:85000\n", e.mustRun("decrypt", ct))

	status := e.mustRun("keys", "status")
	assert.Regexp(t, `keys:\s+2`, status)
	assert.Regexp(t, `kdf iterations:\s+1000`, status)
	assert.NotContains(t, status, "last rotated:   never")
}

func TestWrongMasterSecret(t *testing.T) {
	e := newEnv(t)
	ct := strings.TrimSpace(e.mustRun("encrypt", "secret"))

	t.Setenv(config.EnvMasterSecret, "wrong-secret-5678")
	_, err := e.run("", "decrypt", ct)
	assert.ErrorIs(t, err, common.ErrInvalidMasterKey)
}

func TestRedactAndSanitize(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, "***************0123\n", e.mustRun("redact", "6222021234567890123"))
	assert.Equal(t, "*****\n", e.mustRun("redact", "--show-last", "0", "12345"))
	assert.Equal(t, "'=SUM(A1:A9)\n", e.mustRun("sanitize", "=SUM(A1:A9)"))
	assert.Equal(t, "Alice\n", e.mustRun("sanitize", "Alice"))
}

func TestHashPassword(t *testing.T) {
	e := newEnv(t)
	e.passwords = []string{"hunter2-hunter2"}

	out := e.mustRun("hash-password")
	assert.True(t, strings.HasPrefix(out, "$argon2id$v=19$m=1024,t=1,p=1$"), out)
}

var createdID = regexp.MustCompile(`id ([0-9a-f-]+),`)

func TestUsersAndLogin(t *testing.T) {
	e := newEnv(t)

	e.passwords = []string{"Payroll!2024", "Payroll!2024"}
	out := e.mustRun("users", "add", "alice", "--role", "finance")
	m := createdID.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	list := e.mustRun("users", "list")
	assert.Contains(t, list, "alice")
	assert.Contains(t, list, "finance")

	e.passwords = []string{"Payroll!2024"}
	out = e.mustRun("login", "alice")
	assert.Contains(t, out, "login successful")
	assert.Contains(t, out, "role: finance")

	e.passwords = []string{"wrong-password"}
	out, err := e.run("", "login", "alice")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Contains(t, out, "attempts remaining")

	// Username from stdin.
	e.passwords = []string{"Payroll!2024"}
	out, err = e.run("alice\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "login successful")

	e.mustRun("users", "disable", id)
	e.passwords = []string{"Payroll!2024"}
	out, err = e.run("", "login", "alice")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Contains(t, out, "invalid username or password")

	e.mustRun("users", "enable", id)
	e.passwords = []string{"NewPayroll!2025", "NewPayroll!2025"}
	assert.Contains(t, e.mustRun("users", "passwd", id), "password changed")

	e.passwords = []string{"NewPayroll!2025"}
	assert.Contains(t, e.mustRun("login", "alice"), "login successful")
}

func TestUsersAdd_Errors(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "users", "add", "bob", "--role", "janitor")
	assert.ErrorIs(t, err, common.ErrorValidation)

	e.passwords = []string{"Payroll!2024", "Payroll!2025"}
	_, err = e.run("", "users", "add", "bob")
	assert.EqualError(t, err, "passwords do not match")

	e.passwords = []string{"Payroll!2024", "Payroll!2024"}
	e.mustRun("users", "add", "bob")

	e.passwords = []string{"Payroll!2024", "Payroll!2024"}
	_, err = e.run("", "users", "add", "bob")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = e.run("", "users", "disable", "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestKeysRestoreWithoutMirror(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("", "keys", "restore")
	assert.ErrorContains(t, err, "mirror is not configured")
}

func TestInvalidFlagValue(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("", "--decrypt-policy", "lenient", "redact", "x")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestGetSimpleText(t *testing.T) {
	var w bytes.Buffer
	r := bufioReader("  bob  \n")
	s, err := GetSimpleText(r, "Username:", &w)
	require.NoError(t, err)
	assert.Equal(t, "bob", s)
	assert.Equal(t, "Username:\n> ", w.String())

	s, err = GetSimpleText(bufioReader("partial"), "Username:", &w)
	require.NoError(t, err)
	assert.Equal(t, "partial", s)

	_, err = GetSimpleText(bufioReader(""), "Username:", &w)
	assert.Error(t, err)
}
