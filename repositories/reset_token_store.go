package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResetTokenStore keeps hashed password-reset tokens until they expire. Only
// the hash is ever stored; the raw token goes out by email.
type ResetTokenStore interface {
	Save(ctx context.Context, tokenHash string, accountID primitive.ObjectID, ttl time.Duration) error
	// Lookup returns ErrNotFound for unknown or expired hashes.
	Lookup(ctx context.Context, tokenHash string) (primitive.ObjectID, error)
	Delete(ctx context.Context, tokenHash string) error
}

const resetTokenPrefix = "password_reset:"

// RedisResetTokenStore relies on key TTLs for expiry.
type RedisResetTokenStore struct {
	client *redis.Client
}

func NewRedisResetTokenStore(client *redis.Client) *RedisResetTokenStore {
	return &RedisResetTokenStore{client: client}
}

func (s *RedisResetTokenStore) Save(ctx context.Context, tokenHash string, accountID primitive.ObjectID, ttl time.Duration) error {
	if err := s.client.Set(ctx, resetTokenPrefix+tokenHash, accountID.Hex(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

func (s *RedisResetTokenStore) Lookup(ctx context.Context, tokenHash string) (primitive.ObjectID, error) {
	value, err := s.client.Get(ctx, resetTokenPrefix+tokenHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return primitive.NilObjectID, ErrNotFound
		}
		return primitive.NilObjectID, fmt.Errorf("redis error: %w", err)
	}
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("corrupt reset token entry: %w", err)
	}
	return id, nil
}

func (s *RedisResetTokenStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, resetTokenPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("failed to remove reset token: %w", err)
	}
	return nil
}

type resetEntry struct {
	accountID primitive.ObjectID
	expiresAt time.Time
}

// MemoryResetTokenStore is used when Redis is not configured or unreachable.
type MemoryResetTokenStore struct {
	mu      sync.Mutex
	entries map[string]resetEntry
	now     func() time.Time
}

func NewMemoryResetTokenStore() *MemoryResetTokenStore {
	return &MemoryResetTokenStore{entries: make(map[string]resetEntry), now: time.Now}
}

func (s *MemoryResetTokenStore) Save(_ context.Context, tokenHash string, accountID primitive.ObjectID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for hash, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, hash)
		}
	}
	s.entries[tokenHash] = resetEntry{accountID: accountID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryResetTokenStore) Lookup(_ context.Context, tokenHash string) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[tokenHash]
	if !ok {
		return primitive.NilObjectID, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, tokenHash)
		return primitive.NilObjectID, ErrNotFound
	}
	return entry.accountID, nil
}

func (s *MemoryResetTokenStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tokenHash)
	return nil
}
