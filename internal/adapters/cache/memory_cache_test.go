package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleAnalysis(messageID string) *core.EmailAnalysis {
	return &core.EmailAnalysis{
		MessageID:     messageID,
		Sender:        "alice@example.com",
		SecurityScore: 90,
		RiskLevel:     core.RiskLow,
		AnalyzedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryCache(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		c := NewMemoryCache(zap.NewNop(), 0)
		require.NoError(t, c.Set(context.Background(), sampleAnalysis("m1"), time.Hour))

		got, err := c.Get(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, "m1", got.MessageID)
		assert.Equal(t, 90, got.SecurityScore)
	})

	t.Run("miss", func(t *testing.T) {
		c := NewMemoryCache(zap.NewNop(), 0)
		_, err := c.Get(context.Background(), "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expiry", func(t *testing.T) {
		c := NewMemoryCache(zap.NewNop(), 0)
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		c.SetClock(func() time.Time { return now })

		require.NoError(t, c.Set(context.Background(), sampleAnalysis("m1"), time.Minute))

		_, err := c.Get(context.Background(), "m1")
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = c.Get(context.Background(), "m1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		c := NewMemoryCache(zap.NewNop(), 0)
		require.NoError(t, c.Set(context.Background(), sampleAnalysis("m1"), time.Hour))
		require.NoError(t, c.Delete(context.Background(), "m1"))

		_, err := c.Get(context.Background(), "m1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cleanup removes only expired entries", func(t *testing.T) {
		c := NewMemoryCache(zap.NewNop(), 0)
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		c.SetClock(func() time.Time { return now })

		require.NoError(t, c.Set(context.Background(), sampleAnalysis("short"), time.Minute))
		require.NoError(t, c.Set(context.Background(), sampleAnalysis("long"), time.Hour))

		now = now.Add(10 * time.Minute)
		require.NoError(t, c.Cleanup(context.Background()))

		_, err := c.Get(context.Background(), "short")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = c.Get(context.Background(), "long")
		assert.NoError(t, err)
	})
}
