package factory

import (
	"fmt"

	"github.com/mailwarden/mailwarden/internal/adapters/dns"
	"github.com/mailwarden/mailwarden/internal/config"
	"github.com/mailwarden/mailwarden/internal/core"
	"go.uber.org/zap"
)

// DNSFactory creates TXT resolvers based on configuration
type DNSFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDNSFactory creates a new DNS factory
func NewDNSFactory(cfg *config.Config, logger *zap.Logger) *DNSFactory {
	return &DNSFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateResolver creates the configured upstream resolver wrapped in the
// TTL cache.
func (f *DNSFactory) CreateResolver() (core.TXTResolver, error) {
	timeout, err := f.cfg.GetDuration("dns.timeout")
	if err != nil {
		return nil, fmt.Errorf("invalid DNS timeout: %w", err)
	}
	cacheTimeout, err := f.cfg.GetDuration("dns.cache_timeout")
	if err != nil {
		return nil, fmt.Errorf("invalid DNS cache timeout: %w", err)
	}

	var upstream core.TXTResolver
	switch provider := f.cfg.GetString("dns.provider"); provider {
	case "doh":
		upstream = dns.NewDoHClient(f.cfg.GetString("dns.endpoint"), timeout, f.logger)
	case "direct":
		upstream = dns.NewDirectResolver(f.cfg.GetStringSlice("dns.nameservers"), timeout, f.logger)
	default:
		return nil, fmt.Errorf("unsupported DNS provider: %s", provider)
	}

	return dns.NewCachedResolver(upstream, cacheTimeout, f.logger), nil
}
