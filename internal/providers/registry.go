package providers

import (
	"strings"

	"go.uber.org/zap"
)

// defaultDomains are the large mail providers whose outbound mail is
// essentially always authenticated. A failing or absent check from one of
// these domains is far more suspicious than from an arbitrary sender.
var defaultDomains = []string{
	"gmail.com",
	"googlemail.com",
	"outlook.com",
	"hotmail.com",
	"live.com",
	"yahoo.com",
	"icloud.com",
	"me.com",
	"protonmail.com",
	"proton.me",
	"aol.com",
	"zoho.com",
}

// Registry answers whether a sender domain belongs to a recognized mail
// provider. Subdomains of a registered provider count as recognized.
type Registry struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewRegistry creates a registry seeded with the built-in provider list plus
// any extra domains from configuration.
func NewRegistry(extra []string, logger *zap.Logger) *Registry {
	domains := make(map[string]struct{}, len(defaultDomains)+len(extra))
	for _, d := range defaultDomains {
		domains[d] = struct{}{}
	}
	for _, d := range extra {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains[d] = struct{}{}
		}
	}

	if len(extra) > 0 && logger != nil {
		logger.Info("Extended known provider registry",
			zap.Int("extra_domains", len(extra)))
	}

	return &Registry{domains: domains, logger: logger}
}

// IsKnown reports whether the domain, or a parent of it, is a registered
// mail provider.
func (r *Registry) IsKnown(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}

	if _, ok := r.domains[domain]; ok {
		return true
	}
	for i := strings.Index(domain, "."); i >= 0; i = strings.Index(domain, ".") {
		domain = domain[i+1:]
		if _, ok := r.domains[domain]; ok {
			return true
		}
	}
	return false
}
