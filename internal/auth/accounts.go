package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/dbx"
	"github.com/dmitrijs2005/payguard/internal/users"
)

// CreateUser registers an active account. A taken username yields
// common.ErrorAlreadyExists.
func (g *Gate) CreateUser(ctx context.Context, username, password string, role users.Role) (*users.Identity, error) {
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) < MinUserNameLen {
		return nil, fmt.Errorf("%w: username must be at least %d characters", common.ErrorValidation, MinUserNameLen)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if _, err := users.ParseRole(string(role)); err != nil {
		return nil, err
	}

	hash, err := g.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *users.User
	err = dbx.WithTx(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := g.repomanager.Users(tx)

		_, err := repo.GetByUserName(ctx, username)
		if err == nil {
			return common.ErrorAlreadyExists
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		created, err = repo.Create(ctx, &users.User{
			UserName:     username,
			PasswordHash: hash,
			Role:         role,
			IsActive:     true,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("user %q: %w", username, common.ErrorAlreadyExists)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	g.logger.Info(ctx, "user created", "username", username, "role", string(role))
	return created.Identity(), nil
}

// ChangePassword replaces the password of userID.
func (g *Gate) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := g.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := g.repomanager.Users(g.db).UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	g.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// SetActive enables or disables userID. Disabled accounts fail login with
// the same message as a wrong password.
func (g *Gate) SetActive(ctx context.Context, userID string, active bool) error {
	if err := g.repomanager.Users(g.db).SetActive(ctx, userID, active); err != nil {
		return err
	}
	g.logger.Info(ctx, "account status changed", "user_id", userID, "active", active)
	return nil
}

// Account is a user listing entry without the password hash.
type Account struct {
	users.Identity
	IsActive bool
	Locked   bool
}

// ListAccounts returns every user with its active and lockout state.
func (g *Gate) ListAccounts(ctx context.Context) ([]Account, error) {
	list, err := g.repomanager.Users(g.db).List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Account, 0, len(list))
	for _, u := range list {
		locked, _ := g.limiter.IsLocked(u.UserName)
		out = append(out, Account{Identity: *u.Identity(), IsActive: u.IsActive, Locked: locked})
	}
	return out, nil
}
