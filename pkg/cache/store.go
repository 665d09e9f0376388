// Package cache stores content blobs for reuse across generation calls.
//
// Entries expire lazily: every read compares the clock with ExpiresAt, so an
// expired entry is invisible to Get and List even while it still occupies
// storage. Purge reclaims that storage and is never needed for correctness.
package cache

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pario-ai/promptlab/pkg/clock"
	"github.com/pario-ai/promptlab/pkg/models"
)

// HandlePrefix starts every generated handle.
const HandlePrefix = "cachedContents/"

// Store owns cache entries.
type Store interface {
	// Create registers content and returns the new entry.
	Create(ctx context.Context, n models.NewCacheEntry) (*models.CacheEntry, error)
	// Get returns a live entry. Unknown and expired handles both report ErrNotFound.
	Get(ctx context.Context, handle string) (*models.CacheEntry, error)
	// List returns live entries in creation order.
	List(ctx context.Context) ([]models.CacheEntry, error)
	// Delete removes an entry whether or not it has expired.
	Delete(ctx context.Context, handle string) error
	// ExtendTTL sets ExpiresAt to now+ttl on a live entry.
	ExtendTTL(ctx context.Context, handle string, ttl time.Duration) (*models.CacheEntry, error)
	// Purge removes expired entries and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
	// Stats returns entry counts and Get hit/miss counters.
	Stats(ctx context.Context) (models.CacheStats, error)
	// Close releases resources.
	Close() error
}

// Options configures a Store implementation.
type Options struct {
	Clock  clock.Clock
	Logger zerolog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithClock sets the clock used for expiry checks.
func WithClock(c clock.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithLogger sets the logger for cache mutations.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// BuildOptions applies opts over the defaults.
func BuildOptions(opts ...Option) Options {
	o := Options{Clock: clock.Real{}, Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewHandle returns a fresh, collision-free handle.
func NewHandle() string {
	return HandlePrefix + uuid.NewString()
}

// NotFound wraps ErrNotFound for a handle.
func NotFound(handle string) error {
	return fmt.Errorf("%w: cached content %q", models.ErrNotFound, handle)
}

// maxExpiry is the latest instant representable as Unix nanoseconds.
var maxExpiry = time.Unix(0, math.MaxInt64)

// ValidateTTL rejects non-positive TTLs.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", models.ErrValidation, ttl)
	}
	return nil
}

// ExpiresAt returns now+ttl, rejecting TTLs that are not positive or that
// end past the Unix nanosecond range.
func ExpiresAt(now time.Time, ttl time.Duration) (time.Time, error) {
	if err := ValidateTTL(ttl); err != nil {
		return time.Time{}, err
	}
	expires := now.Add(ttl)
	if expires.After(maxExpiry) {
		return time.Time{}, fmt.Errorf("%w: ttl %s ends after %s", models.ErrValidation, ttl, maxExpiry.UTC().Format(time.RFC3339))
	}
	return expires, nil
}

// ClonePayload deep-copies payload parts.
func ClonePayload(in []models.PayloadRef) []models.PayloadRef {
	out := make([]models.PayloadRef, len(in))
	for i, p := range in {
		out[i] = p
		out[i].Data = slices.Clone(p.Data)
	}
	return out
}
