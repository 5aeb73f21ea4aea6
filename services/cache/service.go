package cache

import (
	"context"
	"errors"
	"time"

	"github.com/upb/chat-relay/models"
	"github.com/upb/chat-relay/repositories"
	"github.com/upb/chat-relay/services"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single store operation
const DefaultTimeout = 2 * time.Second

// ErrMiss is returned by Get when no reply has been recorded for a prompt
var ErrMiss = errors.New("cache miss")

// Service is the response cache. Lookups are exact-match on the prompt and
// return the most recently stored reply; stores always append.
type Service struct {
	repo    repositories.CacheRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewService creates a new response cache over repo
func NewService(repo repositories.CacheRepository, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		timeout: timeout,
		logger:  logger,
	}
}

// Timeout is the deadline applied to each store operation
func (s *Service) Timeout() time.Duration {
	return s.timeout
}

// Get returns the latest stored entry for prompt, ErrMiss when there is none,
// or a storage error when the store could not be read.
func (s *Service) Get(ctx context.Context, prompt string) (*models.CacheEntry, error) {
	if prompt == "" {
		return nil, services.ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry, err := s.repo.Latest(ctx, prompt)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMiss
		}
		return nil, services.Wrap(services.ErrCacheUnavailable, err).WithDetail("operation", "get")
	}

	return entry, nil
}

// Set records reply as the newest answer for prompt
func (s *Service) Set(ctx context.Context, prompt, reply, provider string) error {
	entry := models.NewCacheEntry(prompt, reply, provider)
	if err := entry.Validate(); err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, "invalid cache entry", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Insert(ctx, entry); err != nil {
		return services.Wrap(services.ErrCacheUnavailable, err).WithDetail("operation", "set")
	}

	s.logger.Debug("cached reply",
		zap.Int64("entry_id", entry.ID),
		zap.String("provider", provider),
	)
	return nil
}

// Ping checks the backing store is reachable
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		return services.Wrap(services.ErrCacheUnavailable, err).WithDetail("operation", "ping")
	}
	return nil
}
