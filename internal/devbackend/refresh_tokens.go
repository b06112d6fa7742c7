package devbackend

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrRefreshTokenMismatch = errors.New("refresh token hash mismatch")
)

type RefreshTokenRow struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

// RefreshTokens keeps issued refresh tokens by jti. Rotate holds the lock
// across check and swap so two concurrent refreshes of the same token
// cannot both succeed.
type RefreshTokens struct {
	mu   sync.Mutex
	rows map[string]RefreshTokenRow
	now  func() time.Time
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{
		rows: make(map[string]RefreshTokenRow),
		now:  time.Now,
	}
}

func (r *RefreshTokens) Create(_ context.Context, row RefreshTokenRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row.CreatedAt.IsZero() {
		row.CreatedAt = r.now().UTC()
	}
	r.rows[row.ID] = row
	return nil
}

func (r *RefreshTokens) Get(_ context.Context, id string) (RefreshTokenRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return RefreshTokenRow{}, ErrRefreshTokenNotFound
	}
	return row, nil
}

// Rotate revokes the row identified by id, provided it is live and its hash
// matches, and stores next in its place.
func (r *RefreshTokens) Rotate(_ context.Context, id, tokenHash string, next RefreshTokenRow) (RefreshTokenRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return RefreshTokenRow{}, ErrRefreshTokenNotFound
	}
	if row.RevokedAt != nil {
		return RefreshTokenRow{}, ErrRefreshTokenRevoked
	}

	now := r.now().UTC()
	if now.After(row.ExpiresAt) {
		return RefreshTokenRow{}, ErrRefreshTokenExpired
	}
	if row.TokenHash != tokenHash {
		return RefreshTokenRow{}, ErrRefreshTokenMismatch
	}

	replacedBy := next.ID
	row.RevokedAt = &now
	row.ReplacedBy = &replacedBy
	r.rows[id] = row

	if next.UserID == "" {
		next.UserID = row.UserID
	}
	next.CreatedAt = now
	r.rows[next.ID] = next

	return row, nil
}

func (r *RefreshTokens) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.RevokedAt != nil {
		return nil
	}
	now := r.now().UTC()
	row.RevokedAt = &now
	r.rows[id] = row
	return nil
}

func (r *RefreshTokens) RevokeAllForUser(_ context.Context, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	n := 0
	for id, row := range r.rows {
		if row.UserID != userID || row.RevokedAt != nil {
			continue
		}
		row.RevokedAt = &now
		r.rows[id] = row
		n++
	}
	return n
}
