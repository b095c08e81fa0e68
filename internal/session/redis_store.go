// Package session provides the Redis-backed session registry backing the
// session context resolver. A token is only honored while its JTI is still
// present here, which gives sign-out and forced revocation immediate effect.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound means the session is unknown, revoked or expired.
var ErrNotFound = errors.New("session not found or expired")

// Record is what we keep per active session.
type Record struct {
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	TenantID   string    `json:"tenant_id,omitempty"`
	InvestorID string    `json:"investor_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RedisStore implements session storage using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "sess:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "sess:"}
}

func (s *RedisStore) key(jti string) string {
	return s.prefix + jti
}

// Save registers a session under its token JTI with an expiry matching the
// token's.
func (s *RedisStore) Save(ctx context.Context, jti string, rec Record, expiresAt time.Time) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	if err := s.client.Set(ctx, s.key(jti), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Lookup returns the session registered under jti, or ErrNotFound.
func (s *RedisStore) Lookup(ctx context.Context, jti string) (Record, error) {
	jsonData, err := s.client.Get(ctx, s.key(jti)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(jsonData), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal session record: %w", err)
	}
	return rec, nil
}

// Revoke deletes a session. Deleting an unknown JTI is not an error.
func (s *RedisStore) Revoke(ctx context.Context, jti string) error {
	if err := s.client.Del(ctx, s.key(jti)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
