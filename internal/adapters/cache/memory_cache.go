package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mailwarden/mailwarden/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a cache entry is not found or expired.
var ErrNotFound = errors.New("cache entry not found")

type memoryEntry struct {
	analysis  *core.EmailAnalysis
	expiresAt time.Time
}

// MemoryCache is an in-memory implementation of the CacheRepository
// interface.
type MemoryCache struct {
	entries     map[string]memoryEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	now         func() time.Time
	stopCh      chan struct{}
}

// NewMemoryCache creates a new in-memory analysis cache.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]memoryEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache
}

// SetClock replaces the cache clock. Used by tests.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.now = now
}

// Get retrieves a cached analysis for a message.
func (c *MemoryCache) Get(ctx context.Context, messageID string) (*core.EmailAnalysis, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[messageID]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.analysis, nil
}

// Set stores an analysis with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, analysis *core.EmailAnalysis, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[analysis.MessageID] = memoryEntry{
		analysis:  analysis,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Delete removes a cached analysis.
func (c *MemoryCache) Delete(ctx context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, messageID)
	return nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			expired++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expired))
	return nil
}

// startCleanupTask runs Cleanup on a ticker until Stop.
func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task.
func (c *MemoryCache) Stop() {
	close(c.stopCh)
}
