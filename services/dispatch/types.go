package dispatch

import (
	"context"
	"time"

	"github.com/upb/chat-relay/models"
	"github.com/upb/chat-relay/services/providers"
)

// Resolver looks up provider descriptors by key
type Resolver interface {
	Resolve(key string) (providers.Descriptor, error)
}

// Caller performs a single provider invocation
type Caller interface {
	Call(ctx context.Context, d providers.Descriptor, prompt string) (string, error)
}

// Cache is the response cache as seen by the engine
type Cache interface {
	Get(ctx context.Context, prompt string) (*models.CacheEntry, error)
	Set(ctx context.Context, prompt, reply, provider string) error
}

// Result is the outcome of a successful dispatch
type Result struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
	Cached   bool   `json:"cached"`

	// Attempts lists every provider tried, in order. Empty on a cache hit.
	Attempts []Attempt `json:"-"`
}

// Attempt records one try against one candidate provider
type Attempt struct {
	Provider string
	Err      error
	Latency  time.Duration
}

// Succeeded reports whether the attempt produced a reply
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}
