package user

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a coarse permission tag attached to a principal. Roles have no
// order; checks are membership only.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleLeader Role = "leader"
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts any casing ("ADMIN" and "admin" are the same role).
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))

	switch r {
	case RoleAdmin, RoleUser, RoleLeader:
		return r, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}

// User is the authenticated principal. It is never mutated in place; a new
// value replaces the old one.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

func (u User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
