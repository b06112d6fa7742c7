package devbackend

import (
	"context"
	"errors"

	"github.com/geocoder89/projecthub/internal/domain/user"
)

type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdmin creates the admin account unless one with the same email
// already exists. An empty email or password disables seeding.
func EnsureAdmin(ctx context.Context, accounts *Accounts, seed AdminSeed) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	_, err := accounts.GetByEmail(ctx, seed.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return err
	}

	hash, err := HashPassword(seed.Password)
	if err != nil {
		return err
	}

	_, err = accounts.Create(ctx, seed.Email, hash, seed.Name, "", user.RoleAdmin)
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}
