package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyTTL is how long a transfer key is remembered
const DefaultIdempotencyTTL = 24 * time.Hour

const idempotencyPrefix = "kaskecil:idempotency:transfer:"

// IdempotencyStore implements domain.IdempotencyStore on Redis
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a new IdempotencyStore. A non-positive ttl
// falls back to DefaultIdempotencyTTL.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

func idempotencyKey(key string) string {
	return idempotencyPrefix + key
}

// Claim marks key as pending with SET NX; false means someone else holds it
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKey(key), domain.PendingIdempotencyValue, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Lookup returns the transfer ID stored for key, "" when unknown
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Complete replaces the pending marker with the transfer ID
func (s *IdempotencyStore) Complete(ctx context.Context, key string, transferID string) error {
	if err := s.client.Set(ctx, idempotencyKey(key), transferID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Release forgets key so the request can be retried
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
