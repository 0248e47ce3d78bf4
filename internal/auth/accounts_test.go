package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/users"
)

func TestCreateUser_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gate.CreateUser(ctx, "al", "SecurePass123!", users.RoleAdmin)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.gate.CreateUser(ctx, "alice", "short", users.RoleAdmin)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.gate.CreateUser(ctx, "alice", "SecurePass123!", users.Role("ceo"))
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestCreateUser_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "SecurePass123!", users.RoleAdmin)

	_, err := f.gate.CreateUser(ctx, " alice ", "AnotherPass123", users.RoleHR)
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreateUser_StoresHashNotPassword(t *testing.T) {
	f := newFixture(t)
	id := f.addUser(t, "alice", "SecurePass123!", users.RoleAdmin)

	u, err := f.repo.GetByID(context.Background(), id.ID)
	require.NoError(t, err)
	assert.NotContains(t, u.PasswordHash, "SecurePass123!")
	assert.True(t, f.hasher.Manager.Verify("SecurePass123!", u.PasswordHash))
	assert.True(t, u.IsActive)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addUser(t, "alice", "SecurePass123!", users.RoleAdmin)

	assert.ErrorIs(t, f.gate.ChangePassword(ctx, id.ID, "short"), common.ErrorValidation)
	assert.ErrorIs(t, f.gate.ChangePassword(ctx, "missing", "LongEnough123"), common.ErrorNotFound)

	require.NoError(t, f.gate.ChangePassword(ctx, id.ID, "BrandNewPass456"))

	_, err := f.gate.Login(ctx, "alice", "SecurePass123!")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	res, err := f.gate.Login(ctx, "alice", "BrandNewPass456")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSetActive_Missing(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.gate.SetActive(context.Background(), "missing", false), common.ErrorNotFound)
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", "SecurePass123!", users.RoleAdmin)
	bob := f.addUser(t, "bob", "SecurePass123!", users.RoleHR)
	require.NoError(t, f.gate.SetActive(ctx, bob.ID, false))
	for i := 0; i < 5; i++ {
		_, _ = f.gate.Login(ctx, "alice", "wrong-password")
	}

	list, err := f.gate.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].UserName)
	assert.True(t, list[0].IsActive)
	assert.True(t, list[0].Locked)
	assert.Equal(t, "bob", list[1].UserName)
	assert.False(t, list[1].IsActive)
	assert.False(t, list[1].Locked)
}
