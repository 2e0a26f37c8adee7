// Package policy produces per-mechanism verdicts from parsed headers and
// DNS records. The evidence tiering is a trust model: explicit upstream
// Authentication-Results outrank locally inferred presence heuristics, which
// outrank absence.
package policy

import (
	"strings"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/headers"
)

// ValidateSPF resolves the SPF verdict for a message.
//
// Tier 1: an explicit spf= token in Authentication-Results.
// Tier 2: a published v=spf1 record with at least one enforceable mechanism.
// Tier 3: none.
func ValidateSPF(fm headers.FieldMap, txtRecords []string) core.AuthCheckResult {
	ar := headers.ExtractAuthResults(fm)
	if ar.SPF.Status != core.StatusUnknown {
		return ar.SPF
	}

	for _, rec := range txtRecords {
		if !strings.HasPrefix(strings.TrimSpace(rec), "v=spf1") {
			continue
		}
		if hasEnforceableMechanism(rec) {
			return core.AuthCheckResult{
				Status:  core.StatusPass,
				Details: "SPF policy exists and has enforceable mechanisms: " + rec,
			}
		}
	}

	return core.AuthCheckResult{
		Status:      core.StatusNone,
		Explanation: "no SPF record found for the sender domain",
	}
}

// hasEnforceableMechanism reports whether an SPF record names any host
// source (include:, a:, mx:) rather than being an empty or -all-only shell.
func hasEnforceableMechanism(record string) bool {
	for _, tok := range strings.Fields(record) {
		tok = strings.TrimLeft(tok, "+-~?")
		if strings.HasPrefix(tok, "include:") ||
			tok == "a" || strings.HasPrefix(tok, "a:") ||
			tok == "mx" || strings.HasPrefix(tok, "mx:") {
			return true
		}
	}
	return false
}

// ValidateDKIM resolves the DKIM verdict for a message.
//
// Tier 1: an explicit dkim= token in Authentication-Results.
// Tier 2: an attached DKIM-Signature header (or a provider-prefixed variant
// such as X-Google-DKIM-Signature). Presence means "signature attached",
// not a cryptographic verification.
// Tier 3: none.
func ValidateDKIM(fm headers.FieldMap) core.AuthCheckResult {
	ar := headers.ExtractAuthResults(fm)
	if ar.DKIM.Status != core.StatusUnknown {
		return ar.DKIM
	}

	for name := range fm {
		if strings.HasSuffix(name, "dkim-signature") {
			return core.AuthCheckResult{
				Status:  core.StatusPass,
				Details: "DKIM signature attached (" + name + "), not cryptographically verified",
			}
		}
	}

	return core.AuthCheckResult{
		Status:      core.StatusNone,
		Explanation: "no DKIM signature found on the message",
	}
}

// ValidateDMARC resolves the DMARC verdict for a message.
//
// Tier 1: an explicit dmarc= token in Authentication-Results.
// Tier 2: a published v=DMARC1 record; details carry the parsed p= policy.
// Tier 3: none.
func ValidateDMARC(fm headers.FieldMap, dmarcRecords []string) core.AuthCheckResult {
	ar := headers.ExtractAuthResults(fm)
	if ar.DMARC.Status != core.StatusUnknown {
		return ar.DMARC
	}

	for _, rec := range dmarcRecords {
		trimmed := strings.TrimSpace(rec)
		if !strings.HasPrefix(trimmed, "v=DMARC1") {
			continue
		}
		check := core.AuthCheckResult{
			Status:  core.StatusPass,
			Details: "DMARC policy published",
		}
		if p := recordPolicy(trimmed); p != "" {
			check.Details = "DMARC policy published, p=" + p
		}
		return check
	}

	return core.AuthCheckResult{
		Status:      core.StatusNone,
		Explanation: "no DMARC record found for the sender domain",
	}
}

// recordPolicy extracts the p= token from a DMARC record.
func recordPolicy(record string) string {
	for _, part := range strings.Split(record, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "p=") {
			return strings.TrimPrefix(part, "p=")
		}
	}
	return ""
}
