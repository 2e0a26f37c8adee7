package headers

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// tokenDomain reduces an identity token (header.from=example.com,
// smtp.mailfrom=bounce@mail.example.com, header.i=@example.com) to a bare
// domain.
func tokenDomain(token string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return ""
	}
	if at := strings.LastIndex(t, "@"); at >= 0 {
		t = t[at+1:]
	}
	return strings.TrimSuffix(t, ".")
}

// OrganizationalDomain returns the registrable domain (eTLD+1) for alignment
// comparisons, falling back to the input when the public suffix list cannot
// place it (localhost, bare TLDs, garbage).
func OrganizationalDomain(domain string) string {
	d := strings.TrimSuffix(strings.ToLower(domain), ".")
	if d == "" {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(d)
	if err != nil {
		return d
	}
	return etld1
}

// Aligned reports relaxed-mode DMARC alignment: the two domains are equal,
// share an organizational domain, or one is a subdomain of the other.
func Aligned(a, b string) bool {
	da := strings.TrimSuffix(strings.ToLower(a), ".")
	db := strings.TrimSuffix(strings.ToLower(b), ".")
	if da == "" || db == "" {
		return false
	}
	if da == db {
		return true
	}
	if strings.HasSuffix(da, "."+db) || strings.HasSuffix(db, "."+da) {
		return true
	}
	return OrganizationalDomain(da) == OrganizationalDomain(db)
}
