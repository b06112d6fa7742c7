package revocation

import (
	"context"
	"time"

	"github.com/geocoder89/projecthub/internal/cache"
)

// MemoryStore is the single-process fallback used when redis is not
// configured.
type MemoryStore struct {
	c   *cache.Cache
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c:   cache.New(time.Minute),
		now: time.Now,
	}
}

func (s *MemoryStore) Revoke(_ context.Context, fingerprint string, until time.Time) error {
	s.c.SetWithTTL(fingerprint, struct{}{}, until.Sub(s.now()))
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, fingerprint string) (bool, error) {
	_, ok := s.c.Get(fingerprint)
	return ok, nil
}

// Sweep drops expired entries; the gateway calls it periodically.
func (s *MemoryStore) Sweep() int {
	return s.c.Sweep()
}
