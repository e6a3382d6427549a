// Package cache stores extraction results keyed by document content.
//
// Entries are opaque byte slices, normally the JSON of an LLM extraction, under a key
// derived from the provider, model, document type, requested fields and document text.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache is the store behind the extraction agent
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Stats counts lookups against a cache
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Writes uint64 `json:"writes"`
}

const keyPrefix = "docverify:v1:"

// Key derives a stable cache key from its parts
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// New builds the configured cache: nil when disabled, memory only without a directory,
// otherwise memory in front of disk
func New(enabled bool, dir string, memoryTTL, diskTTL time.Duration) Cache {
	switch {
	case !enabled:
		return nil
	case dir == "":
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	default:
		return NewLayeredCache(memoryTTL, dir, diskTTL)
	}
}
