package devbackend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/google/uuid"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already in use")
)

// Account is a user plus the fields only the backend ever sees.
type Account struct {
	user.User
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}

func (a Account) Public() PublicUser {
	return PublicUser{
		ID:       a.ID,
		Email:    a.Email,
		Name:     a.Name,
		LastName: a.LastName,
		FullName: a.FullName,
		Role:     string(a.Role),
	}
}

type PublicUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

type Accounts struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

func NewAccounts() *Accounts {
	return &Accounts{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Accounts) Create(_ context.Context, email, passwordHash, name, lastName string, role user.Role) (Account, error) {
	key := normalizeEmail(email)

	a := Account{
		User: user.User{
			ID:       uuid.NewString(),
			Email:    key,
			Name:     name,
			FullName: strings.TrimSpace(name + " " + lastName),
			Role:     role,
		},
		LastName:     lastName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[key]; taken {
		return Account{}, ErrEmailTaken
	}
	r.byID[a.ID] = a
	r.byEmail[key] = a.ID

	return a, nil
}

func (r *Accounts) GetByEmail(_ context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return r.byID[id], nil
}

func (r *Accounts) GetByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}
