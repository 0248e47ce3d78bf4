// Package auth authenticates users against stored Argon2id hashes while
// throttling repeated failures, and administers accounts.
//
// Login equalizes work between unknown, disabled and real accounts: every
// path that reaches the password check performs one Argon2id verification,
// and all three failures share one message.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/logging"
	"github.com/dmitrijs2005/payguard/internal/ratelimit"
	"github.com/dmitrijs2005/payguard/internal/repomanager"
	"github.com/dmitrijs2005/payguard/internal/users"
)

const (
	MsgLoginSuccessful = "login successful"
	MsgInvalid         = "invalid username or password"

	MinUserNameLen = 3
	MinPasswordLen = 8
)

// Hasher is the password hashing dependency; *passwords.Manager implements it.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
	NeedsRehash(encoded string) bool
	DummyHash() string
}

// Result is the outcome of a login attempt.
type Result struct {
	Success  bool
	Identity *users.Identity
	// Message is safe to show to the person logging in.
	Message string
	// RemainingAttempts is set only after a genuine password mismatch.
	RemainingAttempts int
	// LockedFor is the lockout time left in seconds when the account is locked.
	LockedFor int
}

// Gate composes the user store, the password hasher and the rate limiter.
type Gate struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      Hasher
	limiter     *ratelimit.Limiter
	logger      logging.Logger
	now         func() time.Time
}

func NewGate(db *sql.DB, rm repomanager.RepositoryManager, h Hasher, rl *ratelimit.Limiter, logger logging.Logger) *Gate {
	return &Gate{
		db:          db,
		repomanager: rm,
		hasher:      h,
		limiter:     rl,
		logger:      logger,
		now:         time.Now,
	}
}

// Login authenticates username/password. On failure the returned error is
// common.ErrLockedOut, common.ErrInvalidCredentials or common.ErrorInternal,
// and Result.Message carries the text for the user.
func (g *Gate) Login(ctx context.Context, username, password string) (*Result, error) {
	if locked, secs := g.limiter.IsLocked(username); locked {
		g.logger.Warn(ctx, "login rejected, account locked", "username", username, "remaining_s", secs)
		return &Result{
			Message:   fmt.Sprintf("account locked, try again in %d seconds", secs),
			LockedFor: secs,
		}, common.ErrLockedOut
	}

	repo := g.repomanager.Users(g.db)
	user, err := repo.GetByUserName(ctx, username)
	if err != nil {
		g.hasher.Verify(password, g.hasher.DummyHash())

		if errors.Is(err, common.ErrorNotFound) {
			g.limiter.RecordAttempt(username, false)
			g.logger.Info(ctx, "login failed", "username", username)
			return &Result{Message: MsgInvalid}, common.ErrInvalidCredentials
		}

		g.logger.Error(ctx, "login lookup failed", "username", username, "error", err)
		return &Result{Message: MsgInvalid}, common.ErrorInternal
	}

	valid := g.hasher.Verify(password, user.PasswordHash)

	if !user.IsActive {
		g.limiter.RecordAttempt(username, false)
		g.logger.Info(ctx, "login failed", "username", username)
		return &Result{Message: MsgInvalid}, common.ErrInvalidCredentials
	}

	if !valid {
		g.limiter.RecordAttempt(username, false)
		remaining := g.limiter.RemainingAttempts(username)
		g.logger.Info(ctx, "login failed", "username", username, "remaining_attempts", remaining)
		if remaining == 0 {
			g.logger.Warn(ctx, "account locked after repeated failures", "username", username)
		}
		return &Result{
			Message:           fmt.Sprintf("%s (%d attempts remaining)", MsgInvalid, remaining),
			RemainingAttempts: remaining,
		}, common.ErrInvalidCredentials
	}

	g.limiter.RecordAttempt(username, true)

	if err := repo.UpdateLastLogin(ctx, user.ID, g.now()); err != nil {
		g.logger.Warn(ctx, "failed to record last login", "username", username, "error", err)
	}
	g.rehashIfNeeded(ctx, repo, user, password)

	g.logger.Info(ctx, "login succeeded", "username", username)
	return &Result{
		Success:  true,
		Identity: user.Identity(),
		Message:  MsgLoginSuccessful,
	}, nil
}

func (g *Gate) rehashIfNeeded(ctx context.Context, repo users.Repository, user *users.User, password string) {
	if !g.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	h, err := g.hasher.Hash(password)
	if err != nil {
		g.logger.Warn(ctx, "password rehash failed", "username", user.UserName, "error", err)
		return
	}
	if err := repo.UpdatePassword(ctx, user.ID, h); err != nil {
		g.logger.Warn(ctx, "password rehash not saved", "username", user.UserName, "error", err)
		return
	}
	g.logger.Info(ctx, "password rehashed with current parameters", "username", user.UserName)
}

// IsLocked reports the lockout state of username.
func (g *Gate) IsLocked(username string) (bool, int) {
	return g.limiter.IsLocked(username)
}

// Unlock lifts a lockout on username.
func (g *Gate) Unlock(ctx context.Context, username string) {
	g.limiter.Unlock(username)
	g.logger.Info(ctx, "account unlocked", "username", username)
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, MinPasswordLen)
	}
	return nil
}
