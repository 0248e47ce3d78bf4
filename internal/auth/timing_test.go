package auth

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/logging"
	"github.com/dmitrijs2005/payguard/internal/passwords"
	"github.com/dmitrijs2005/payguard/internal/ratelimit"
	"github.com/dmitrijs2005/payguard/internal/repomanager"
	"github.com/dmitrijs2005/payguard/internal/users"
)

func medianOf(d []time.Duration) time.Duration {
	s := slices.Clone(d)
	slices.Sort(s)
	return s[len(s)/2]
}

// Unknown users and wrong passwords must cost about the same, so response
// time does not reveal which accounts exist.
func TestLogin_TimingParity(t *testing.T) {
	if testing.Short() {
		t.Skip("runs full-cost Argon2id")
	}

	ctx := context.Background()
	db, rm, err := repomanager.Open(ctx, repomanager.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pm := passwords.NewManager(passwords.DefaultParams())
	rl := ratelimit.New(ratelimit.Config{MaxAttempts: 1000, Window: time.Hour, Lockout: time.Minute})
	gate := NewGate(db, rm, pm, rl, logging.Discard())

	_, err = gate.CreateUser(ctx, "alice", "Payroll!2024", users.RoleFinance)
	require.NoError(t, err)
	pm.DummyHash()

	const trials = 7
	var unknown, wrong []time.Duration
	for i := 0; i < trials; i++ {
		start := time.Now()
		_, err := gate.Login(ctx, "mallory", "Payroll!2024")
		unknown = append(unknown, time.Since(start))
		require.ErrorIs(t, err, common.ErrInvalidCredentials)

		start = time.Now()
		_, err = gate.Login(ctx, "alice", "not-the-password")
		wrong = append(wrong, time.Since(start))
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
	}

	a, b := medianOf(unknown), medianOf(wrong)
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	slowest := max(a, b)
	assert.Less(t, float64(diff)/float64(slowest), 0.5,
		"median unknown-user %v vs wrong-password %v", a, b)
}
