package factory

import (
	"context"

	"github.com/mailwarden/mailwarden/internal/adapters/dom"
	"github.com/mailwarden/mailwarden/internal/adapters/gmail"
	"github.com/mailwarden/mailwarden/internal/adapters/manual"
	"github.com/mailwarden/mailwarden/internal/config"
	"github.com/mailwarden/mailwarden/internal/core"
	"go.uber.org/zap"
)

// EvidenceSources is the provider chain in trust order plus the handles the
// ingestion edge uses to feed scraped evidence in.
type EvidenceSources struct {
	Chain  []core.EvidenceProvider
	DOM    *dom.Provider
	Manual *manual.Provider
}

// EvidenceFactory assembles the evidence provider chain
type EvidenceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEvidenceFactory creates a new evidence factory
func NewEvidenceFactory(cfg *config.Config, logger *zap.Logger) *EvidenceFactory {
	return &EvidenceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSources builds the chain: provider API first when enabled, then DOM
// heuristics, then user-pasted headers. An unavailable Gmail grant degrades
// to the remaining sources instead of failing startup.
func (f *EvidenceFactory) CreateSources(ctx context.Context, resolver core.TXTResolver) *EvidenceSources {
	domProvider := dom.NewProvider(f.logger)
	manualProvider := manual.NewProvider(resolver, f.logger)

	chain := make([]core.EvidenceProvider, 0, 3)

	gmailCfg := f.cfg.GetGmail()
	if gmailCfg.Enabled {
		tokens := gmail.NewOAuthTokenProvider(
			gmailCfg.ClientID,
			gmailCfg.ClientSecret,
			gmailCfg.RefreshToken,
			nil,
			f.logger,
		)
		apiProvider, err := gmail.NewProvider(ctx, tokens, resolver, f.logger)
		if err != nil {
			f.logger.Warn("Gmail evidence source unavailable, continuing without it",
				zap.Error(err))
		} else {
			chain = append(chain, apiProvider)
		}
	}

	chain = append(chain, domProvider, manualProvider)

	return &EvidenceSources{
		Chain:  chain,
		DOM:    domProvider,
		Manual: manualProvider,
	}
}
