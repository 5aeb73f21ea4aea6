package repositories

import (
	"context"
	"errors"

	"github.com/upb/chat-relay/models"
)

// ErrNotFound is returned by a CacheRepository when no entry matches a prompt
var ErrNotFound = errors.New("cache entry not found")

// CacheRepository is the narrow get/set view of the reply history store.
// Implementations must be safe for concurrent readers and writers.
type CacheRepository interface {
	// Latest returns the most recently created entry whose prompt equals
	// prompt exactly, or ErrNotFound.
	Latest(ctx context.Context, prompt string) (*models.CacheEntry, error)

	// Insert appends a new entry. Existing entries are never updated.
	// On success entry.ID and entry.CreatedAt reflect the stored row.
	Insert(ctx context.Context, entry *models.CacheEntry) error

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}
