// Package manual provides the lowest-preference evidence source: raw header
// text pasted by the user. Once parsed it carries the same fidelity as the
// provider API path.
package manual

import (
	"context"
	"sync"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/policy"
	"go.uber.org/zap"
)

// Provider holds user-supplied raw header text per message.
type Provider struct {
	resolver core.TXTResolver
	logger   *zap.Logger

	mu      sync.RWMutex
	headers map[string]string
}

// NewProvider creates the manual-header evidence provider.
func NewProvider(resolver core.TXTResolver, logger *zap.Logger) *Provider {
	return &Provider{
		resolver: resolver,
		logger:   logger,
		headers:  make(map[string]string),
	}
}

// Name implements core.EvidenceProvider.
func (p *Provider) Name() string { return "manual" }

// Supply stores pasted header text for a message, replacing any previous
// text.
func (p *Provider) Supply(messageID, rawHeaders string) {
	p.mu.Lock()
	p.headers[messageID] = rawHeaders
	p.mu.Unlock()
	p.logger.Debug("Manual headers supplied", zap.String("message_id", messageID))
}

// Clear drops stored text for a message.
func (p *Provider) Clear(messageID string) {
	p.mu.Lock()
	delete(p.headers, messageID)
	p.mu.Unlock()
}

// Gather parses whatever the user pasted for this message, or reports
// nothing to contribute.
func (p *Provider) Gather(ctx context.Context, view core.View) (*core.Evidence, error) {
	p.mu.RLock()
	raw, ok := p.headers[view.MessageID]
	p.mu.RUnlock()
	if !ok || raw == "" {
		return nil, nil
	}
	return policy.BuildEvidence(ctx, raw, p.Name(), p.resolver), nil
}
