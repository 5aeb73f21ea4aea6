// Package redis stores reply history in Redis. Each prompt owns a list keyed
// by the SHA-256 of its text; new entries are pushed on the head so LINDEX 0
// is always the newest. Redis executes commands one at a time, which
// serializes concurrent writers without client-side locking.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/upb/chat-relay/models"
	"github.com/upb/chat-relay/repositories"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "chat-relay"

// CacheRepository implements the repositories.CacheRepository interface
type CacheRepository struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewCacheRepository creates a Redis-backed cache repository
func NewCacheRepository(client *redis.Client, prefix string, logger *zap.Logger) *CacheRepository {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &CacheRepository{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// NewClient builds a go-redis client from connection settings
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Latest returns the newest entry for an exact prompt
func (r *CacheRepository) Latest(ctx context.Context, prompt string) (*models.CacheEntry, error) {
	raw, err := r.client.LIndex(ctx, r.promptKey(prompt), 0).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	// digest collision guard
	if entry.Prompt != prompt {
		return nil, repositories.ErrNotFound
	}

	return &entry, nil
}

// Insert appends a new entry to the prompt's history
func (r *CacheRepository) Insert(ctx context.Context, entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid cache entry: %w", err)
	}

	id, err := r.client.Incr(ctx, r.prefix+":seq").Result()
	if err != nil {
		return fmt.Errorf("failed to allocate cache entry id: %w", err)
	}

	stored := *entry
	stored.ID = id
	raw, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := r.client.LPush(ctx, r.promptKey(entry.Prompt), raw).Err(); err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}

	entry.ID = id
	r.logger.Debug("cache entry created",
		zap.Int64("id", entry.ID),
		zap.String("provider", entry.Provider))
	return nil
}

// Ping verifies Redis is reachable
func (r *CacheRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (r *CacheRepository) Close() error {
	return r.client.Close()
}

func (r *CacheRepository) promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return r.prefix + ":prompt:" + hex.EncodeToString(sum[:])
}
