package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want AuthStatus
	}{
		{"pass", StatusPass},
		{"PASS", StatusPass},
		{"  Pass  ", StatusPass},
		{"bestguesspass", StatusPass},
		{"fail", StatusFail},
		{"failed", StatusFail},
		{"failure", StatusFail},
		{"hardfail", StatusFail},
		{"error", StatusFail},
		{"suspicious", StatusFail},
		{"none", StatusNone},
		{"absent", StatusNone},
		{"missing", StatusNone},
		{"neutral", StatusNeutral},
		{"present", StatusPresent},
		{"found", StatusPresent},
		{"", StatusUnknown},
		{"gibberish", StatusUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeStatus(tc.raw))
		})
	}
}

// Tokens that contain "fail" or "error" normalize to fail regardless of the
// finer-grained statuses a strict RFC parser would assign. That vocabulary
// collapse is intentional: every upstream phrasing of a failed or errored
// check is treated the same by scoring.
func TestNormalizeStatusCollapsesFailureVocabulary(t *testing.T) {
	for _, raw := range []string{"softfail", "temperror", "permerror", "SoftFail"} {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, StatusFail, NormalizeStatus(raw))
		})
	}
}

func TestUnknownCheck(t *testing.T) {
	check := UnknownCheck("SPF")
	assert.Equal(t, StatusUnknown, check.Status)
	assert.Contains(t, check.Explanation, "SPF")
}
