// Package dom turns a serialized page-DOM snapshot (security badges,
// tooltips, alert banners) into authentication evidence. The heuristics are
// environment-coupled by nature, so they live behind the same provider
// interface as the API and manual sources and the core pipeline never sees
// the DOM itself.
package dom

import (
	"context"
	"strings"
	"sync"

	"github.com/mailwarden/mailwarden/internal/core"
	"go.uber.org/zap"
)

// Snapshot is what the page scraper hands over for one rendered message.
type Snapshot struct {
	MessageID string   `json:"message_id"`
	Sender    string   `json:"sender"`
	Subject   string   `json:"subject"`
	BodyText  string   `json:"body_text"`
	Badges    []string `json:"badges"`
	Tooltips  []string `json:"tooltips"`
	Titles    []string `json:"titles"`
	Alerts    []string `json:"alerts"`
	Folder    string   `json:"folder"`
	MailedBy  string   `json:"mailed_by"`
	SignedBy  string   `json:"signed_by"`
}

// Provider holds the latest snapshot per message.
type Provider struct {
	logger *zap.Logger

	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewProvider creates the DOM evidence provider.
func NewProvider(logger *zap.Logger) *Provider {
	return &Provider{
		logger:    logger,
		snapshots: make(map[string]Snapshot),
	}
}

// Name implements core.EvidenceProvider.
func (p *Provider) Name() string { return "dom" }

// Supply stores a snapshot, replacing any previous one for the message.
func (p *Provider) Supply(snap Snapshot) {
	p.mu.Lock()
	p.snapshots[snap.MessageID] = snap
	p.mu.Unlock()
	p.logger.Debug("DOM snapshot supplied", zap.String("message_id", snap.MessageID))
}

// Clear drops the snapshot for a message.
func (p *Provider) Clear(messageID string) {
	p.mu.Lock()
	delete(p.snapshots, messageID)
	p.mu.Unlock()
}

// Gather pattern-matches the snapshot's visible security indicators for
// mechanism tokens, and records page context (spam folder, danger banners,
// generic authenticated/verified signals).
func (p *Provider) Gather(ctx context.Context, view core.View) (*core.Evidence, error) {
	p.mu.RLock()
	snap, ok := p.snapshots[view.MessageID]
	p.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	ev := &core.Evidence{
		Source:       p.Name(),
		Sender:       snap.Sender,
		Subject:      snap.Subject,
		Text:         snap.BodyText,
		SPF:          core.UnknownCheck("SPF"),
		DKIM:         core.UnknownCheck("DKIM"),
		DMARC:        core.UnknownCheck("DMARC"),
		InSpamFolder: strings.Contains(strings.ToLower(snap.Folder), "spam"),
	}

	texts := make([]string, 0, len(snap.Badges)+len(snap.Tooltips)+len(snap.Titles))
	texts = append(texts, snap.Badges...)
	texts = append(texts, snap.Tooltips...)
	texts = append(texts, snap.Titles...)

	for _, t := range texts {
		lower := strings.ToLower(t)
		switch {
		case strings.Contains(lower, "spf"):
			applyIndicator(&ev.SPF, lower, t)
		case strings.Contains(lower, "dkim"):
			applyIndicator(&ev.DKIM, lower, t)
		case strings.Contains(lower, "dmarc"):
			applyIndicator(&ev.DMARC, lower, t)
		case genericAuthSignal(lower):
			ev.GenericAuth = true
		}
	}

	if snap.MailedBy != "" || snap.SignedBy != "" {
		ev.GenericAuth = true
	}

	for _, alert := range snap.Alerts {
		if dangerSignal(strings.ToLower(alert)) {
			ev.DangerBanner = true
			break
		}
	}

	return ev, nil
}

// applyIndicator normalizes the status word embedded in a badge or tooltip.
// The first indicator seen for a mechanism wins.
func applyIndicator(check *core.AuthCheckResult, lower, original string) {
	if check.Status != core.StatusUnknown {
		return
	}
	status := core.NormalizeStatus(lower)
	if status == core.StatusUnknown {
		// The mechanism was named but no status word was visible:
		// the badge itself is presence evidence.
		status = core.StatusPresent
	}
	*check = core.AuthCheckResult{
		Status:  status,
		Details: strings.TrimSpace(original),
	}
}

// genericAuthSignal matches ambiguous authenticated/verified indicators that
// carry no per-mechanism detail.
func genericAuthSignal(lower string) bool {
	return strings.Contains(lower, "authenticated") ||
		strings.Contains(lower, "verified") ||
		strings.Contains(lower, "mailed-by") ||
		strings.Contains(lower, "signed-by")
}

// dangerSignal matches the banner texts Gmail places on messages it already
// considers dangerous.
func dangerSignal(lower string) bool {
	return strings.Contains(lower, "phishing") ||
		strings.Contains(lower, "dangerous") ||
		strings.Contains(lower, "why is this message in spam")
}
