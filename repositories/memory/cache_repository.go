package memory

import (
	"context"
	"sync"
	"time"

	"github.com/upb/chat-relay/models"
	"github.com/upb/chat-relay/repositories"
)

// CacheRepository keeps reply history in process memory. Useful for local
// development and tests; nothing survives a restart.
type CacheRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[string][]models.CacheEntry
}

// NewCacheRepository creates an empty in-memory cache repository
func NewCacheRepository() *CacheRepository {
	return &CacheRepository{
		entries: make(map[string][]models.CacheEntry),
	}
}

// Latest returns the newest entry for an exact prompt
func (r *CacheRepository) Latest(ctx context.Context, prompt string) (*models.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.entries[prompt]
	if len(history) == 0 {
		return nil, repositories.ErrNotFound
	}

	entry := history[len(history)-1]
	return &entry, nil
}

// Insert appends a new entry
func (r *CacheRepository) Insert(ctx context.Context, entry *models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry.ID = r.nextID
	r.entries[entry.Prompt] = append(r.entries[entry.Prompt], *entry)
	return nil
}

// Ping always succeeds
func (r *CacheRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the total number of stored entries across all prompts
func (r *CacheRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, history := range r.entries {
		n += len(history)
	}
	return n
}
