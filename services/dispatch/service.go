package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/chat-relay/services"
	"github.com/upb/chat-relay/services/cache"
	"github.com/upb/chat-relay/services/providers"
	"go.uber.org/zap"
)

// Engine answers prompts from the cache or, failing that, by trying
// providers one at a time in candidate order until one replies.
type Engine struct {
	resolver Resolver
	caller   Caller
	cache    Cache
	priority []string
	logger   *zap.Logger
}

// NewEngine creates a dispatch engine. Priority keys the resolver does not
// know are dropped with a warning; repeated keys keep their first position.
// A nil cache disables caching.
func NewEngine(resolver Resolver, caller Caller, cache Cache, priority []string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		resolver: resolver,
		caller:   caller,
		cache:    cache,
		logger:   logger,
	}

	seen := make(map[string]bool, len(priority))
	for _, key := range priority {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			continue
		}
		if _, err := resolver.Resolve(key); err != nil {
			logger.Warn("skipping unknown provider in priority list", zap.String("provider", key))
			continue
		}
		seen[key] = true
		e.priority = append(e.priority, key)
	}

	return e
}

// Priority returns the effective priority order
func (e *Engine) Priority() []string {
	out := make([]string, len(e.priority))
	copy(out, e.priority)
	return out
}

// Candidates builds the per-request try order: the requested provider first,
// then the priority list without it.
func Candidates(requested string, priority []string) []string {
	candidates := make([]string, 0, len(priority)+1)
	if requested != "" {
		candidates = append(candidates, requested)
	}
	for _, key := range priority {
		if key == requested {
			continue
		}
		candidates = append(candidates, key)
	}
	return candidates
}

// GetReply returns a reply for prompt. A cached reply is returned without
// contacting any provider, whichever provider was requested. Otherwise the
// candidates are tried in order and the first reply is written through to
// the cache. When every candidate fails the error is ErrAllProvidersFailed;
// per-provider failures only reach the logs and Result.Attempts.
//
// The caller's cancellation is not propagated: once started, a dispatch runs
// to completion bounded by the per-call provider and cache timeouts.
func (e *Engine) GetReply(ctx context.Context, prompt, requested string) (*Result, error) {
	if prompt == "" {
		return nil, services.ErrEmptyPrompt
	}

	ctx = context.WithoutCancel(ctx)
	dispatchID := uuid.New().String()
	logger := e.logger.With(zap.String("dispatch_id", dispatchID))

	if result, ok := e.lookup(ctx, logger, prompt); ok {
		return result, nil
	}

	candidates := Candidates(requested, e.priority)
	logger.Debug("dispatching prompt",
		zap.String("requested", requested),
		zap.Strings("candidates", candidates))

	attempts := make([]Attempt, 0, len(candidates))
	for _, key := range candidates {
		attempt := e.try(ctx, logger, key, prompt)
		attempts = append(attempts, attempt.Attempt)
		if !attempt.Succeeded() {
			continue
		}

		e.store(ctx, logger, prompt, attempt.reply, key)

		logger.Info("dispatch succeeded",
			zap.String("provider", key),
			zap.Int("attempts", len(attempts)))

		return &Result{
			Reply:    attempt.reply,
			Provider: key,
			Attempts: attempts,
		}, nil
	}

	logger.Error("all providers failed", zap.Int("attempts", len(attempts)))
	return nil, services.Wrap(services.ErrAllProvidersFailed, nil).
		WithDetail("attempts", len(attempts))
}

type outcome struct {
	Attempt
	reply string
}

func (e *Engine) try(ctx context.Context, logger *zap.Logger, key, prompt string) outcome {
	out := outcome{Attempt: Attempt{Provider: key}}

	d, err := e.resolver.Resolve(key)
	if err != nil {
		logger.Warn("skipping unknown provider", zap.String("provider", key))
		out.Err = err
		return out
	}
	if !d.Configured() {
		logger.Warn("skipping unconfigured provider", zap.String("provider", key))
		out.Err = services.Wrapf(services.ErrProviderNotConfigured, nil, "provider %s: credential not configured", key)
		return out
	}

	start := time.Now()
	reply, err := e.caller.Call(ctx, d, prompt)
	out.Latency = time.Since(start)
	if err != nil {
		logger.Warn("provider failed, falling back",
			zap.String("provider", key),
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Duration("latency", out.Latency),
			zap.Error(err))
		out.Err = err
		return out
	}

	out.reply = reply
	return out
}

// lookup treats a cache read failure as a miss
func (e *Engine) lookup(ctx context.Context, logger *zap.Logger, prompt string) (*Result, bool) {
	if e.cache == nil {
		return nil, false
	}

	entry, err := e.cache.Get(ctx, prompt)
	switch {
	case err == nil:
		logger.Info("cache hit", zap.String("provider", entry.Provider))
		return &Result{Reply: entry.Reply, Provider: entry.Provider, Cached: true}, true
	case errors.Is(err, cache.ErrMiss):
		logger.Debug("cache miss")
	default:
		logger.Warn("cache lookup failed, treating as miss", zap.Error(err))
	}
	return nil, false
}

// store swallows write failures; the reply is returned regardless
func (e *Engine) store(ctx context.Context, logger *zap.Logger, prompt, reply, provider string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, prompt, reply, provider); err != nil {
		logger.Warn("cache write failed", zap.String("provider", provider), zap.Error(err))
	}
}

var _ Caller = (*providers.Client)(nil)
var _ Resolver = (*providers.Registry)(nil)
var _ Cache = (*cache.Service)(nil)
