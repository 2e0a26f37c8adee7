package core

import (
	"context"
	"time"
)

// EvidenceProvider extracts authentication evidence for a message from one
// source (provider API, page DOM, user-pasted headers). Providers are tried
// in trust order; a provider that has nothing for the message returns
// (nil, nil) so the resolver falls through to the next one.
type EvidenceProvider interface {
	// Name identifies the provider in logs and in EmailAnalysis.EvidenceSource.
	Name() string

	// Gather extracts evidence for the given view, or nil when this source
	// has nothing usable.
	Gather(ctx context.Context, view View) (*Evidence, error)
}

// Classifier is the opaque content-classification dependency:
// text in, label plus per-label probabilities out.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}

// CacheRepository stores produced analyses keyed by message ID. Entries are
// idempotently recomputable, so expiry simply drops them.
type CacheRepository interface {
	// Get retrieves a cached analysis for a message.
	Get(ctx context.Context, messageID string) (*EmailAnalysis, error)

	// Set stores an analysis with the given time-to-live.
	Set(ctx context.Context, analysis *EmailAnalysis, ttl time.Duration) error

	// Delete removes a cached analysis.
	Delete(ctx context.Context, messageID string) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}

// TXTResolver resolves TXT records for a domain. Implementations are free to
// cache; callers treat a lookup error the same as an empty answer.
type TXTResolver interface {
	LookupTXT(ctx context.Context, domain string) ([]string, error)
}

// Notifier delivers a user-facing notice for a finished analysis. Gated by
// the show_notifications setting.
type Notifier interface {
	Notify(ctx context.Context, analysis *EmailAnalysis) error
}

// AnalysisServer is the ingestion edge that feeds view events into the
// analyzer.
type AnalysisServer interface {
	// Start starts the server.
	Start() error

	// Stop stops the server.
	Stop() error
}
