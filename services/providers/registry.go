package providers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/upb/chat-relay/services"
)

// ErrProviderAlreadyRegistered is returned when two descriptors share a key
var ErrProviderAlreadyRegistered = errors.New("provider already registered")

// Registry maps provider keys to descriptors. It is built once and never
// mutated afterwards, so lookups need no locking.
type Registry struct {
	descriptors map[string]Descriptor
	keys        []string
}

// NewRegistry validates and registers descriptors. A descriptor that needs a
// credential it does not have is still registered; calling it fails later
// with a configuration error.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make(map[string]Descriptor, len(descriptors)),
		keys:        make([]string, 0, len(descriptors)),
	}

	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid provider descriptor: %w", err)
		}
		if _, exists := r.descriptors[d.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, d.Key)
		}
		r.descriptors[d.Key] = d.clone()
		r.keys = append(r.keys, d.Key)
	}

	sort.Strings(r.keys)
	return r, nil
}

// Resolve retrieves a descriptor by key
func (r *Registry) Resolve(key string) (Descriptor, error) {
	d, exists := r.descriptors[key]
	if !exists {
		return Descriptor{}, services.Wrapf(services.ErrProviderNotFound, nil, "provider %q not found", key).
			WithDetail("provider", key)
	}
	return d, nil
}

// Has reports whether key is registered
func (r *Registry) Has(key string) bool {
	_, exists := r.descriptors[key]
	return exists
}

// Configured reports whether key is registered and has what it needs to be called
func (r *Registry) Configured(key string) bool {
	d, exists := r.descriptors[key]
	return exists && d.Configured()
}

// Keys returns all registered provider keys, sorted
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	return len(r.descriptors)
}
