package policy

import (
	"context"
	"strings"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/headers"
)

// BuildEvidence runs the full header pipeline over a raw header block:
// parse, per-mechanism validation against DNS records, identity extraction.
// resolver may be nil, in which case the DNS-record tiers are skipped.
func BuildEvidence(ctx context.Context, raw, source string, resolver core.TXTResolver) *core.Evidence {
	fm := headers.Parse(raw)

	sender := fm.Get("from")
	domain := addressDomain(sender)

	var spfTxt, dmarcTxt []string
	if resolver != nil && domain != "" {
		// Lookup errors degrade to an empty answer set.
		spfTxt, _ = resolver.LookupTXT(ctx, domain)
		dmarcTxt, _ = resolver.LookupTXT(ctx, "_dmarc."+domain)
	}

	return &core.Evidence{
		Source:         source,
		Sender:         sender,
		Subject:        fm.Get("subject"),
		Domain:         domain,
		SPF:            ValidateSPF(fm, spfTxt),
		DKIM:           ValidateDKIM(fm),
		DMARC:          ValidateDMARC(fm, dmarcTxt),
		HasAuthResults: fm.Has("authentication-results") || fm.Has("arc-authentication-results"),
	}
}

// addressDomain pulls the domain out of a From header value, tolerating both
// `Name <user@example.com>` and bare addresses.
func addressDomain(from string) string {
	s := from
	if i := strings.LastIndex(s, "<"); i >= 0 {
		s = strings.TrimSuffix(strings.TrimSpace(s[i+1:]), ">")
	}
	at := strings.LastIndex(s, "@")
	if at < 0 || at == len(s)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s[at+1:]))
}
