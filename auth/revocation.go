package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker is the set of revoked token ids. An entry only needs to live until
// the token it names would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevoker keeps revocations in Redis with a TTL matching the token's
// remaining validity, so they survive restarts and are shared by replicas.
type RedisRevoker struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, now: time.Now}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("revoked:%s", tokenID)
}

// MemoryRevoker is the process-local fallback. Revocations are lost on
// restart.
type MemoryRevoker struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, until := range m.revoked {
		if !until.After(now) {
			delete(m.revoked, id)
		}
	}
	if expiresAt.After(now) {
		m.revoked[tokenID] = expiresAt
	}
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	until, ok := m.revoked[tokenID]
	m.mu.RUnlock()
	return ok && until.After(m.now()), nil
}

func (m *MemoryRevoker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.revoked)
}
