package cache

import (
	"errors"
	"time"
)

// LayeredCache answers from memory and falls back to disk.
// A disk hit is copied into memory for no longer than the disk entry has left to live.
type LayeredCache struct {
	memory    *MemoryCache
	disk      *DiskCache
	memoryTTL time.Duration
}

func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:    NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:      NewDiskCache(diskDir, diskTTL),
		memoryTTL: memoryTTL,
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	entry, found := c.disk.lookup(key)
	if !found {
		return nil, false
	}
	ttl := entry.ExpiresAt.Sub(c.disk.now())
	if c.memoryTTL > 0 && c.memoryTTL < ttl {
		ttl = c.memoryTTL
	}
	_ = c.memory.Set(key, entry.Value, ttl)
	return entry.Value, true
}

// Set writes both layers; ttl applies to disk, memory keeps its own shorter horizon
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	memTTL := c.memoryTTL
	if ttl > 0 && ttl < memTTL {
		memTTL = ttl
	}
	if err := c.memory.Set(key, value, memTTL); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}

// Prune drops expired disk entries
func (c *LayeredCache) Prune() (int, error) {
	return c.disk.Prune()
}

// Stats reports memory-layer lookups
func (c *LayeredCache) Stats() Stats {
	return c.memory.Stats()
}
