// Package cache provides the key-value cache abstraction used for the
// refresh-token cache projection. Two backends are supported: an in-process
// memory cache for development and tests, and Redis for production.
//
// The cache is never a source of truth. Callers fall back to the durable
// store on a miss.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Client defines the cache operations the core needs: bounded-latency point
// reads, writes, and deletes.
type Client interface {
	// Get fetches a value. Returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with a TTL. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// ErrNotFound reports an absent key
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound reports whether err is a cache miss
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Config selects and configures a cache backend
type Config struct {
	Driver   string `json:"driver"` // "memory" | "redis"
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// New creates a cache client for the configured driver. An unknown or empty
// driver falls back to the memory backend.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

// keyPrefix normalizes a configured prefix so stored keys always read
// prefix::rest, matching the platform's key scheme. An empty prefix stays
// empty.
func keyPrefix(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimSuffix(p, "::") + "::"
}
