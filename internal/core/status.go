package core

import (
	"strings"
)

// NormalizeStatus maps a raw authentication token, in whatever vocabulary an
// upstream source used, to a canonical AuthStatus. Matching is by substring,
// case-insensitive, first match wins.
//
// The synthetic token "suspicious" is not an RFC status: it is injected by
// spam-context heuristics and is deliberately scored as a failed check.
func NormalizeStatus(raw string) AuthStatus {
	s := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case strings.Contains(s, "pass"):
		return StatusPass
	case strings.Contains(s, "suspicious"):
		return StatusFail
	case strings.Contains(s, "fail"), strings.Contains(s, "error"):
		return StatusFail
	case strings.Contains(s, "none"), strings.Contains(s, "absent"), strings.Contains(s, "missing"):
		return StatusNone
	case strings.Contains(s, "neutral"):
		return StatusNeutral
	case strings.Contains(s, "softfail"):
		return StatusSoftfail
	case strings.Contains(s, "temperror"):
		return StatusTemperror
	case strings.Contains(s, "permerror"):
		return StatusPermerror
	case strings.Contains(s, "present"), strings.Contains(s, "found"):
		return StatusPresent
	default:
		return StatusUnknown
	}
}

// UnknownCheck returns an AuthCheckResult for a mechanism no source could
// say anything about.
func UnknownCheck(mechanism string) AuthCheckResult {
	return AuthCheckResult{
		Status:      StatusUnknown,
		Explanation: "no " + mechanism + " evidence available",
	}
}
