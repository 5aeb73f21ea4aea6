package models

import (
	"errors"
	"time"
)

// CacheEntry is one row of reply history for a prompt.
// Entries are append-only; the newest entry for a prompt wins on lookup.
type CacheEntry struct {
	ID int64 `json:"id" db:"id"`
	// Prompt is the exact text, no normalization.
	Prompt string `json:"prompt" db:"prompt"`
	Reply  string `json:"reply" db:"reply"`
	// Provider is the key of the provider that produced Reply.
	Provider  string    `json:"provider" db:"provider"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewCacheEntry creates an entry stamped with the current UTC time.
func NewCacheEntry(prompt, reply, provider string) *CacheEntry {
	return &CacheEntry{
		Prompt:    prompt,
		Reply:     reply,
		Provider:  provider,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks that the entry can be persisted
func (e *CacheEntry) Validate() error {
	if e.Prompt == "" {
		return errors.New("prompt is required")
	}
	if e.Provider == "" {
		return errors.New("provider is required")
	}
	return nil
}

// TableName returns the table name for CacheEntry
func (CacheEntry) TableName() string {
	return "response_cache"
}
