package models

import (
	"fmt"
	"time"
)

// PayloadRef is one piece of cached content: inline bytes or an external URI.
type PayloadRef struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// Validate checks that the ref carries a MIME type and exactly one source.
func (p PayloadRef) Validate() error {
	if p.MIMEType == "" {
		return fmt.Errorf("%w: payload mime type is required", ErrValidation)
	}
	hasData := len(p.Data) > 0
	hasURI := p.URI != ""
	if hasData == hasURI {
		return fmt.Errorf("%w: payload must set exactly one of data or uri", ErrValidation)
	}
	return nil
}

// NewCacheEntry holds the caller-supplied fields for a cache entry.
type NewCacheEntry struct {
	ModelID           string
	Payload           []PayloadRef
	SystemInstruction string
	TTL               time.Duration
	DisplayName       string
}

// Validate reports malformed cache input.
func (n NewCacheEntry) Validate() error {
	if n.ModelID == "" {
		return fmt.Errorf("%w: model is required", ErrValidation)
	}
	if len(n.Payload) == 0 {
		return fmt.Errorf("%w: payload is empty", ErrValidation)
	}
	for i, p := range n.Payload {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("payload %d: %w", i, err)
		}
	}
	if n.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", ErrValidation, n.TTL)
	}
	return nil
}

// CacheEntry is cached content bound to a model until ExpiresAt.
type CacheEntry struct {
	Handle            string       `json:"handle"`
	ModelID           string       `json:"model_id"`
	Payload           []PayloadRef `json:"payload"`
	SystemInstruction string       `json:"system_instruction,omitempty"`
	DisplayName       string       `json:"display_name,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	ExpiresAt         time.Time    `json:"expires_at"`
}

// Expired reports whether the entry is logically absent at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStats reports cache size and lookup counters.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Active  int64 `json:"active"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
