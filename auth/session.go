package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore maps opaque session tokens to usernames.
type SessionStore interface {
	Create(ctx context.Context, username string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl}
}

func (r *RedisSessions) Create(ctx context.Context, username string) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, sessionKey(token), username, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set failed: %w", err)
	}
	return token, nil
}

func (r *RedisSessions) Lookup(ctx context.Context, token string) (string, error) {
	username, err := r.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return username, nil
}

func (r *RedisSessions) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

type memorySession struct {
	username  string
	expiresAt time.Time
}

type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		sessions: make(map[string]memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemorySessions) Create(_ context.Context, username string) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for t, s := range m.sessions {
		if !s.expiresAt.After(now) {
			delete(m.sessions, t)
		}
	}
	m.sessions[token] = memorySession{username: username, expiresAt: now.Add(m.ttl)}
	return token, nil
}

func (m *MemorySessions) Lookup(_ context.Context, token string) (string, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok || !s.expiresAt.After(m.now()) {
		return "", ErrSessionNotFound
	}
	return s.username, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}
