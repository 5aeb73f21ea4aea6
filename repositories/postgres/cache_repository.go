package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/chat-relay/models"
	"github.com/upb/chat-relay/repositories"
	"go.uber.org/zap"
)

// CacheRepository implements the repositories.CacheRepository interface
type CacheRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(db *DB, logger *zap.Logger) repositories.CacheRepository {
	return &CacheRepository{
		db:     db,
		logger: logger,
	}
}

// Latest retrieves the newest entry for an exact prompt
func (r *CacheRepository) Latest(ctx context.Context, prompt string) (*models.CacheEntry, error) {
	query := `
		SELECT id, prompt, reply, provider, created_at
		FROM response_cache
		WHERE md5(prompt) = md5($1) AND prompt = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	entry := &models.CacheEntry{}
	err := r.db.QueryRowContext(ctx, query, prompt).Scan(
		&entry.ID,
		&entry.Prompt,
		&entry.Reply,
		&entry.Provider,
		&entry.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return entry, nil
}

// Insert appends a new cache entry
func (r *CacheRepository) Insert(ctx context.Context, entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid cache entry: %w", err)
	}

	query := `
		INSERT INTO response_cache (prompt, reply, provider, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		entry.Prompt,
		entry.Reply,
		entry.Provider,
		entry.CreatedAt,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}

	r.logger.Debug("cache entry created",
		zap.Int64("id", entry.ID),
		zap.String("provider", entry.Provider))
	return nil
}

// Ping verifies the database is reachable
func (r *CacheRepository) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
