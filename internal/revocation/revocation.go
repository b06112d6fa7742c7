// Package revocation remembers access tokens that were logged out before
// they expired, so the edge gate stops routing them into protected pages.
// Entries live only until the token's own expiry.
package revocation

import (
	"context"
	"time"
)

type Store interface {
	Revoke(ctx context.Context, fingerprint string, until time.Time) error
	IsRevoked(ctx context.Context, fingerprint string) (bool, error)
}
