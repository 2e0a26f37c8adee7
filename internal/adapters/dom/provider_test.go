package dom

import (
	"context"
	"testing"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func gather(t *testing.T, snap Snapshot) *core.Evidence {
	t.Helper()
	p := NewProvider(zap.NewNop())
	p.Supply(snap)
	ev, err := p.Gather(context.Background(), core.View{Kind: core.ViewMessage, MessageID: snap.MessageID})
	require.NoError(t, err)
	require.NotNil(t, ev)
	return ev
}

func TestGatherNoSnapshot(t *testing.T) {
	p := NewProvider(zap.NewNop())
	ev, err := p.Gather(context.Background(), core.View{Kind: core.ViewMessage, MessageID: "missing"})
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestGatherMechanismBadges(t *testing.T) {
	ev := gather(t, Snapshot{
		MessageID: "m1",
		Sender:    "alice@example.com",
		Badges:    []string{"SPF: PASS", "DKIM: fail"},
		Tooltips:  []string{"DMARC check passed"},
	})

	assert.Equal(t, core.StatusPass, ev.SPF.Status)
	assert.Equal(t, core.StatusFail, ev.DKIM.Status)
	assert.Equal(t, core.StatusPass, ev.DMARC.Status)
	assert.Equal(t, "SPF: PASS", ev.SPF.Details)
}

func TestGatherMechanismNamedWithoutStatus(t *testing.T) {
	ev := gather(t, Snapshot{
		MessageID: "m1",
		Badges:    []string{"SPF record"},
	})
	// The badge names the mechanism but carries no status word: that is
	// presence evidence.
	assert.Equal(t, core.StatusPresent, ev.SPF.Status)
}

func TestGatherFirstIndicatorWins(t *testing.T) {
	ev := gather(t, Snapshot{
		MessageID: "m1",
		Badges:    []string{"spf=pass", "spf=fail"},
	})
	assert.Equal(t, core.StatusPass, ev.SPF.Status)
}

func TestGatherGenericAuthSignals(t *testing.T) {
	t.Run("verified tooltip", func(t *testing.T) {
		ev := gather(t, Snapshot{MessageID: "m1", Tooltips: []string{"This sender is verified"}})
		assert.True(t, ev.GenericAuth)
		assert.Equal(t, core.StatusUnknown, ev.SPF.Status)
	})

	t.Run("mailed-by and signed-by fields", func(t *testing.T) {
		ev := gather(t, Snapshot{MessageID: "m1", MailedBy: "example.com"})
		assert.True(t, ev.GenericAuth)

		ev = gather(t, Snapshot{MessageID: "m2", SignedBy: "example.com"})
		assert.True(t, ev.GenericAuth)
	})
}

func TestGatherPageContext(t *testing.T) {
	t.Run("spam folder", func(t *testing.T) {
		ev := gather(t, Snapshot{MessageID: "m1", Folder: "Spam"})
		assert.True(t, ev.InSpamFolder)
	})

	t.Run("danger banners", func(t *testing.T) {
		for _, alert := range []string{
			"This message seems dangerous",
			"Be careful: phishing attempt",
			"Why is this message in spam?",
		} {
			ev := gather(t, Snapshot{MessageID: "m1", Alerts: []string{alert}})
			assert.True(t, ev.DangerBanner, alert)
		}
	})

	t.Run("benign alert", func(t *testing.T) {
		ev := gather(t, Snapshot{MessageID: "m1", Alerts: []string{"Message translated from French"}})
		assert.False(t, ev.DangerBanner)
	})
}

func TestClear(t *testing.T) {
	p := NewProvider(zap.NewNop())
	p.Supply(Snapshot{MessageID: "m1", Folder: "spam"})
	p.Clear("m1")

	ev, err := p.Gather(context.Background(), core.View{Kind: core.ViewMessage, MessageID: "m1"})
	require.NoError(t, err)
	assert.Nil(t, ev)
}
