package dns

import (
	"context"
	"fmt"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"go.uber.org/zap"
)

// DirectResolver resolves TXT records by speaking DNS to the configured
// nameservers. Used where an HTTPS egress for DoH is unavailable.
type DirectResolver struct {
	nameservers []string
	client      *mdns.Client
	logger      *zap.Logger
}

// NewDirectResolver creates a resolver against the given nameservers
// ("8.8.8.8:53" form). Empty falls back to the system resolv.conf, then to
// public DNS.
func NewDirectResolver(nameservers []string, timeout time.Duration, logger *zap.Logger) *DirectResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if len(nameservers) == 0 {
		nameservers = systemNameservers()
	}
	return &DirectResolver{
		nameservers: nameservers,
		client:      &mdns.Client{Timeout: timeout},
		logger:      logger,
	}
}

// systemNameservers reads resolv.conf, falling back to public DNS.
func systemNameservers() []string {
	cfg, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if !strings.Contains(s, ":") {
			s += ":53"
		}
		servers = append(servers, s)
	}
	return servers
}

// LookupTXT queries each nameserver in turn until one answers.
func (r *DirectResolver) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(domain), mdns.TypeTXT)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.nameservers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = fmt.Errorf("dns query failed: %w", err)
			continue
		}
		if resp.Rcode == mdns.RcodeNameError {
			return nil, nil
		}
		if resp.Rcode != mdns.RcodeSuccess {
			lastErr = fmt.Errorf("dns: unexpected rcode %d", resp.Rcode)
			continue
		}

		var records []string
		for _, rr := range resp.Answer {
			if txt, ok := rr.(*mdns.TXT); ok {
				records = append(records, strings.Join(txt.Txt, ""))
			}
		}
		r.logger.Debug("Direct TXT lookup",
			zap.String("domain", domain),
			zap.Int("records", len(records)))
		return records, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dns: no nameservers configured")
	}
	return nil, lastErr
}
