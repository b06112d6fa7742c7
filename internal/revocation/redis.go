package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "revoked:"

// RedisStore keeps revocations in redis with a TTL equal to the remaining
// token lifetime.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: defaultPrefix,
		now:    time.Now,
	}
}

func (s *RedisStore) Revoke(ctx context.Context, fingerprint string, until time.Time) error {
	if fingerprint == "" {
		return errors.New("revocation: empty fingerprint")
	}

	ttl := until.Sub(s.now())
	if ttl <= 0 {
		// already expired, nothing to remember
		return nil
	}

	if err := s.client.Set(ctx, s.prefix+fingerprint, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}

	err := s.client.Get(ctx, s.prefix+fingerprint).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revocation: redis get: %w", err)
	}
	return true, nil
}
