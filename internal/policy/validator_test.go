package policy

import (
	"testing"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/headers"
	"github.com/stretchr/testify/assert"
)

func TestValidateSPF(t *testing.T) {
	t.Run("explicit header verdict wins over records", func(t *testing.T) {
		fm := headers.Parse("Authentication-Results: mx; spf=fail smtp.mailfrom=example.com\n")
		check := ValidateSPF(fm, []string{"v=spf1 include:_spf.example.com ~all"})
		assert.Equal(t, core.StatusFail, check.Status)
	})

	t.Run("published record with enforceable mechanism", func(t *testing.T) {
		fm := headers.Parse("From: a@example.com\n")
		check := ValidateSPF(fm, []string{"v=spf1 include:_spf.google.com ~all"})
		assert.Equal(t, core.StatusPass, check.Status)
		assert.Contains(t, check.Details, "v=spf1")
	})

	t.Run("record without host mechanisms is not enforceable", func(t *testing.T) {
		fm := headers.Parse("From: a@example.com\n")
		check := ValidateSPF(fm, []string{"v=spf1 -all"})
		assert.Equal(t, core.StatusNone, check.Status)
	})

	t.Run("qualifier prefixes are tolerated", func(t *testing.T) {
		fm := headers.Parse("From: a@example.com\n")
		for _, rec := range []string{"v=spf1 +mx -all", "v=spf1 ~include:x.com", "v=spf1 a:mail.example.com"} {
			check := ValidateSPF(fm, []string{rec})
			assert.Equal(t, core.StatusPass, check.Status, rec)
		}
	})

	t.Run("non-SPF TXT records ignored", func(t *testing.T) {
		fm := headers.Parse("From: a@example.com\n")
		check := ValidateSPF(fm, []string{"google-site-verification=abc123"})
		assert.Equal(t, core.StatusNone, check.Status)
		assert.Contains(t, check.Explanation, "no SPF record")
	})
}

func TestValidateDKIM(t *testing.T) {
	t.Run("explicit header verdict wins", func(t *testing.T) {
		fm := headers.Parse("Authentication-Results: mx; dkim=pass header.i=@example.com\nDKIM-Signature: v=1; a=rsa-sha256\n")
		check := ValidateDKIM(fm)
		assert.Equal(t, core.StatusPass, check.Status)
		assert.Contains(t, check.Details, "header.i=@example.com")
	})

	t.Run("attached signature is presence evidence only", func(t *testing.T) {
		fm := headers.Parse("DKIM-Signature: v=1; a=rsa-sha256; d=example.com\n")
		check := ValidateDKIM(fm)
		assert.Equal(t, core.StatusPass, check.Status)
		assert.Contains(t, check.Details, "not cryptographically verified")
	})

	t.Run("provider-prefixed signature variants count", func(t *testing.T) {
		fm := headers.Parse("X-Google-DKIM-Signature: v=1; a=rsa-sha256\n")
		check := ValidateDKIM(fm)
		assert.Equal(t, core.StatusPass, check.Status)
	})

	t.Run("no signature", func(t *testing.T) {
		fm := headers.Parse("From: a@example.com\n")
		check := ValidateDKIM(fm)
		assert.Equal(t, core.StatusNone, check.Status)
	})
}

func TestValidateDMARC(t *testing.T) {
	t.Run("explicit header verdict wins", func(t *testing.T) {
		fm := headers.Parse("Authentication-Results: mx; dmarc=fail header.from=example.com\n")
		check := ValidateDMARC(fm, []string{"v=DMARC1; p=reject"})
		assert.Equal(t, core.StatusFail, check.Status)
	})

	t.Run("published record carries the policy", func(t *testing.T) {
		fm := headers.Parse("From: a@example.com\n")
		check := ValidateDMARC(fm, []string{"v=DMARC1; p=quarantine; rua=mailto:d@example.com"})
		assert.Equal(t, core.StatusPass, check.Status)
		assert.Equal(t, "DMARC policy published, p=quarantine", check.Details)
	})

	t.Run("record without policy token", func(t *testing.T) {
		fm := headers.Parse("From: a@example.com\n")
		check := ValidateDMARC(fm, []string{"v=DMARC1"})
		assert.Equal(t, core.StatusPass, check.Status)
		assert.Equal(t, "DMARC policy published", check.Details)
	})

	t.Run("no record", func(t *testing.T) {
		fm := headers.Parse("From: a@example.com\n")
		check := ValidateDMARC(fm, nil)
		assert.Equal(t, core.StatusNone, check.Status)
	})
}
