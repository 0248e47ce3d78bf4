// Package users holds the user account model and its persistence.
package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/payguard/internal/common"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleFinance  Role = "finance"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
)

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleFinance, RoleHR, RoleEmployee:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", common.ErrorValidation, s)
}

// User is a stored account. PasswordHash is an Argon2id PHC string.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// Identity is what callers learn about an authenticated user. It never
// carries the password hash.
type Identity struct {
	ID       string
	UserName string
	Role     Role
}

func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID, UserName: u.UserName, Role: u.Role}
}
