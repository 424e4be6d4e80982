// Package idempotency reserves Idempotency-Key values so a retried request
// is not applied twice.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idem:"

// Store reserves keys for a TTL.
type Store interface {
	// Reserve returns false when the key is already reserved
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisStore keeps reservations in Redis via SETNX.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisStore) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

// MemoryStore is the single-process fallback when REDIS_ADDR is empty.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryStore) Reserve(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.expires[key]; ok && now.Before(exp) {
		return false, nil
	}

	// drop expired keys while holding the lock anyway
	for k, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, k)
		}
	}

	m.expires[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.expires, key)
	return nil
}
