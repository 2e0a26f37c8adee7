// Package headers parses raw RFC-822 header blocks and extracts the
// Authentication-Results evidence the policy layer works from.
package headers

import (
	"regexp"
	"strings"

	"github.com/mailwarden/mailwarden/internal/core"
)

// FieldMap holds parsed header fields. Names are lower-cased, values keep
// their original case. Repeated fields keep every occurrence in order.
type FieldMap map[string][]string

// Get returns the first value of a header field, or "".
func (fm FieldMap) Get(name string) string {
	vs := fm[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Has reports whether a field is present at all.
func (fm FieldMap) Has(name string) bool {
	return len(fm[strings.ToLower(name)]) > 0
}

// Parse splits a raw header block into a FieldMap. A line beginning with
// whitespace continues the previous header (RFC 822 folding) and is
// space-joined onto it. Malformed input yields whatever fields could be
// recovered; Parse never fails.
func Parse(raw string) FieldMap {
	fm := make(FieldMap)
	var lastName string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if lastName == "" {
				continue
			}
			vs := fm[lastName]
			vs[len(vs)-1] = vs[len(vs)-1] + " " + strings.TrimSpace(line)
			continue
		}

		colon := strings.Index(line, ":")
		if colon <= 0 {
			lastName = ""
			continue
		}

		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])
		fm[name] = append(fm[name], value)
		lastName = name
	}

	return fm
}

// AuthResults is the evidence extracted from the first encountered
// Authentication-Results (or ARC-Authentication-Results) block.
type AuthResults struct {
	Found bool

	SPF   core.AuthCheckResult
	DKIM  core.AuthCheckResult
	DMARC core.AuthCheckResult

	// Auxiliary identity tokens used for alignment and diagnostics.
	SMTPMailFrom string
	HeaderI      string
	HeaderFrom   string
	ClientIP     string
	Policy       string
	SubPolicy    string
	Disposition  string
}

var (
	mechRe = map[string]*regexp.Regexp{
		"spf":   regexp.MustCompile(`(?i)\bspf=([A-Za-z0-9]+)(?:\s*\(([^)]*)\))?`),
		"dkim":  regexp.MustCompile(`(?i)\bdkim=([A-Za-z0-9]+)(?:\s*\(([^)]*)\))?`),
		"dmarc": regexp.MustCompile(`(?i)\bdmarc=([A-Za-z0-9]+)(?:\s*\(([^)]*)\))?`),
	}

	auxRe = map[string]*regexp.Regexp{
		"smtp.mailfrom": regexp.MustCompile(`(?i)\bsmtp\.mailfrom=([^;\s]+)`),
		"header.i":      regexp.MustCompile(`(?i)\bheader\.i=([^;\s]+)`),
		"header.from":   regexp.MustCompile(`(?i)\bheader\.from=([^;\s]+)`),
		"client-ip":     regexp.MustCompile(`(?i)\bclient-ip=([^;\s]+)`),
		"p":             regexp.MustCompile(`(?i)\bp=([A-Za-z]+)`),
		"sp":            regexp.MustCompile(`(?i)\bsp=([A-Za-z]+)`),
		"dis":           regexp.MustCompile(`(?i)\bdis=([^;\s]+)`),
	}
)

// ExtractAuthResults pulls per-mechanism verdicts out of the first
// Authentication-Results block. Absent or malformed blocks yield a result
// with Found=false and all three checks at unknown.
func ExtractAuthResults(fm FieldMap) AuthResults {
	out := AuthResults{
		SPF:   core.UnknownCheck("SPF"),
		DKIM:  core.UnknownCheck("DKIM"),
		DMARC: core.UnknownCheck("DMARC"),
	}

	block := fm.Get("authentication-results")
	if block == "" {
		block = fm.Get("arc-authentication-results")
	}
	if block == "" {
		return out
	}

	out.SMTPMailFrom = firstMatch(auxRe["smtp.mailfrom"], block)
	out.HeaderI = firstMatch(auxRe["header.i"], block)
	out.HeaderFrom = firstMatch(auxRe["header.from"], block)
	out.ClientIP = firstMatch(auxRe["client-ip"], block)
	out.Policy = firstMatch(auxRe["p"], block)
	out.SubPolicy = firstMatch(auxRe["sp"], block)
	out.Disposition = firstMatch(auxRe["dis"], block)

	if check, ok := extractMechanism(mechRe["spf"], block); ok {
		check.Details = joinDetails(check.Details,
			keyed("smtp.mailfrom", out.SMTPMailFrom),
			keyed("client-ip", out.ClientIP))
		out.SPF = check
		out.Found = true
	}
	if check, ok := extractMechanism(mechRe["dkim"], block); ok {
		check.Details = joinDetails(check.Details, keyed("header.i", out.HeaderI))
		out.DKIM = check
		out.Found = true
	}
	if check, ok := extractMechanism(mechRe["dmarc"], block); ok {
		check.Details = joinDetails(check.Details,
			keyed("header.from", out.HeaderFrom),
			keyed("p", out.Policy),
			keyed("sp", out.SubPolicy),
			keyed("dis", out.Disposition))
		if check.Status == core.StatusFail && check.Explanation == "" {
			check.Explanation = dmarcFailExplanation(out)
		}
		out.DMARC = check
		out.Found = true
	}

	return out
}

// extractMechanism parses one mech=value token with its optional
// parenthesized reason.
func extractMechanism(re *regexp.Regexp, block string) (core.AuthCheckResult, bool) {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return core.AuthCheckResult{}, false
	}

	check := core.AuthCheckResult{Status: core.NormalizeStatus(m[1])}
	if len(m) > 2 && m[2] != "" {
		reason := strings.TrimSpace(m[2])
		check.Details = reason
		switch check.Status {
		case core.StatusFail, core.StatusSoftfail, core.StatusNone:
			check.Explanation = reason
		}
	}
	return check, true
}

// dmarcFailExplanation distinguishes, in priority order, which identifier
// misalignment caused a DMARC failure.
func dmarcFailExplanation(ar AuthResults) string {
	fromDomain := tokenDomain(ar.HeaderFrom)
	spfDomain := tokenDomain(ar.SMTPMailFrom)
	dkimDomain := tokenDomain(ar.HeaderI)

	spfAligned := fromDomain != "" && spfDomain != "" && Aligned(fromDomain, spfDomain)
	dkimAligned := fromDomain != "" && dkimDomain != "" && Aligned(fromDomain, dkimDomain)

	switch {
	case !spfAligned && !dkimAligned:
		return "neither SPF nor DKIM aligned with the From domain"
	case !spfAligned:
		return "SPF not aligned with the From domain"
	case !dkimAligned:
		return "DKIM not aligned with the From domain"
	default:
		return "DMARC policy enforcement triggered"
	}
}

func firstMatch(re *regexp.Regexp, block string) string {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.Trim(m[1], `"'`)
}

func keyed(key, value string) string {
	if value == "" {
		return ""
	}
	return key + "=" + value
}

func joinDetails(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
