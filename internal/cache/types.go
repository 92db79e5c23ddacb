// Package cache provides the tiered timing dataset cache: a small
// in-memory LRU in front of a persistent compressed disk store, with a
// pluggable remote loader as the tier of last resort.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Common errors for cache operations.
var (
	// ErrContentUnavailable is returned when every tier failed to produce
	// a usable dataset for a content ID.
	ErrContentUnavailable = errors.New("timing content unavailable")

	// ErrNotFound is the cause when neither local tier holds a content ID
	// and no origin loader is configured.
	ErrNotFound = errors.New("timing content not cached")

	// ErrCorruptEntry is the cause when a persisted entry exists but fails
	// to decode or validate. The entry is deleted when this is detected.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// UnavailableError reports a content ID no tier could serve, wrapping the
// last underlying cause. It matches both ErrContentUnavailable and the
// cause with errors.Is.
type UnavailableError struct {
	ContentID string
	Err       error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("timing content %q unavailable", e.ContentID)
	}
	return fmt.Sprintf("timing content %q unavailable: %v", e.ContentID, e.Err)
}

// Unwrap exposes the sentinel and the cause.
func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrContentUnavailable}
	}
	return []error{ErrContentUnavailable, e.Err}
}

// Tier identifies which cache tier served a request.
type Tier int

const (
	// TierMemory is the in-memory LRU (fastest).
	TierMemory Tier = iota
	// TierDisk is the persistent local store.
	TierDisk
	// TierRemote is the origin loader.
	TierRemote
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierDisk:
		return "disk"
	case TierRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Loader fetches raw timing documents from the origin when neither local
// tier has them. Implementations live in internal/fetch.
type Loader interface {
	FetchTiming(ctx context.Context, contentID string) ([]byte, error)
}

// Stats holds cache performance metrics for one tier.
type Stats struct {
	Capacity  int // Maximum entries (0 = unbounded)
	ItemCount int

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64

	LastAccess time.Time
	LastEvict  time.Time
}

// Config holds configuration for the cache manager.
type Config struct {
	// MemoryCapacity is the number of datasets held in memory.
	MemoryCapacity int

	// DiskPath is the directory for the persistent store.
	DiskPath string

	// CompressionLevel is the zstd level for persisted entries
	// (0 disables compression).
	CompressionLevel int

	// TTL expires persisted entries during cleanup (0 keeps forever).
	TTL time.Duration

	// CleanupInterval is how often expired entries are pruned
	// (0 disables the cleanup routine).
	CleanupInterval time.Duration

	Logger *log.Logger
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   10,
		CompressionLevel: 3,
		TTL:              30 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}
