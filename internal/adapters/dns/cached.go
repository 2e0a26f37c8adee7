package dns

import (
	"context"
	"sync"
	"time"

	"github.com/mailwarden/mailwarden/internal/core"
	"go.uber.org/zap"
)

// RecordSet is one cached answer, keyed by (domain, recordType).
type RecordSet struct {
	Domain     string
	RecordType string
	Records    []string
	FetchedAt  time.Time
}

// CachedResolver fronts a TXTResolver with a time-bounded cache. A cache hit
// younger than the timeout is served without a network call; a miss or an
// expired entry triggers a fresh lookup whose result replaces (not merges)
// the entry. Lookup failures are reported to callers as an empty record set:
// this pipeline cannot distinguish "domain has no policy" from "network path
// broken", and treats both the same.
type CachedResolver struct {
	upstream core.TXTResolver
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]RecordSet
}

// NewCachedResolver wraps upstream with a cache holding entries for
// cacheTimeout (default 5m).
func NewCachedResolver(upstream core.TXTResolver, cacheTimeout time.Duration, logger *zap.Logger) *CachedResolver {
	if cacheTimeout <= 0 {
		cacheTimeout = 5 * time.Minute
	}
	return &CachedResolver{
		upstream: upstream,
		timeout:  cacheTimeout,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]RecordSet),
	}
}

// SetClock replaces the cache clock. Used by tests.
func (c *CachedResolver) SetClock(now func() time.Time) {
	c.now = now
}

// LookupTXT returns TXT records for the domain, consulting the cache first.
// The error return is always nil; failures degrade to an empty answer.
func (c *CachedResolver) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	key := domain + "/TXT"

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.FetchedAt) < c.timeout {
		return entry.Records, nil
	}

	records, err := c.upstream.LookupTXT(ctx, domain)
	if err != nil {
		c.logger.Debug("TXT lookup failed, treating as empty",
			zap.String("domain", domain),
			zap.Error(err))
		records = nil
	}

	c.mu.Lock()
	c.entries[key] = RecordSet{
		Domain:     domain,
		RecordType: "TXT",
		Records:    records,
		FetchedAt:  c.now(),
	}
	c.mu.Unlock()

	return records, nil
}

// LookupDMARC resolves the _dmarc subdomain TXT records for a domain.
func (c *CachedResolver) LookupDMARC(ctx context.Context, domain string) ([]string, error) {
	return c.LookupTXT(ctx, "_dmarc."+domain)
}
