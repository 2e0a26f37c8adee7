package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const spamContextExplanation = "found in spam folder or flagged dangerous"

// AnalyzerOptions tunes the evidence resolution pipeline.
type AnalyzerOptions struct {
	// AttemptTimeout bounds the wait on each evidence source before the
	// resolver falls back to the next one. Default 2s.
	AttemptTimeout time.Duration

	// RealTime gates automatic re-analysis. When off, a non-forced
	// re-trigger for the message analyzed last is a no-op.
	RealTime bool

	// Mode selects the scoring formula.
	Mode ScoringMode

	// CacheEnabled gates the analysis cache.
	CacheEnabled bool

	// CacheTTL is how long a produced analysis stays valid.
	CacheTTL time.Duration
}

// Analyzer resolves authentication evidence for an open message into one
// canonical EmailAnalysis. Providers are consulted in trust order; context
// overrides and scoring are applied on top of the winning evidence.
type Analyzer struct {
	providers  []EvidenceProvider
	classifier Classifier
	cache      CacheRepository
	notifier   Notifier
	knownFn    func(domain string) bool
	logger     *zap.Logger
	opts       AnalyzerOptions
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	activeID string
	lastID   string
}

// NewAnalyzer creates the evidence resolver service. classifier and notifier
// may be nil; their absence degrades the result, it never fails it.
func NewAnalyzer(
	providers []EvidenceProvider,
	classifier Classifier,
	cache CacheRepository,
	notifier Notifier,
	knownFn func(domain string) bool,
	logger *zap.Logger,
	opts AnalyzerOptions,
) *Analyzer {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 2 * time.Second
	}
	if opts.Mode == "" {
		opts.Mode = ScoringAuthOnly
	}
	if knownFn == nil {
		knownFn = func(string) bool { return false }
	}
	return &Analyzer{
		providers:  providers,
		classifier: classifier,
		cache:      cache,
		notifier:   notifier,
		knownFn:    knownFn,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
		inFlight:   make(map[string]struct{}),
	}
}

// SetClock replaces the analyzer's clock. Used by tests.
func (a *Analyzer) SetClock(now func() time.Time) {
	a.now = now
}

// Analyze resolves one message-view event into an EmailAnalysis.
//
// A list view suspends analysis entirely: the active analysis is cleared and
// nil is returned. A trigger for a message that is already being analyzed is
// a no-op, as is a re-trigger for the last analyzed message when real-time
// monitoring is off. A result arriving after the viewer moved on is
// discarded.
func (a *Analyzer) Analyze(ctx context.Context, view View) (*EmailAnalysis, error) {
	return a.analyze(ctx, view, false)
}

func (a *Analyzer) analyze(ctx context.Context, view View, force bool) (*EmailAnalysis, error) {
	if view.Kind != ViewMessage || view.MessageID == "" {
		a.mu.Lock()
		a.activeID = ""
		a.mu.Unlock()
		a.logger.Debug("No open message, analysis suspended")
		return nil, nil
	}

	a.mu.Lock()
	a.activeID = view.MessageID
	if _, running := a.inFlight[view.MessageID]; running {
		a.mu.Unlock()
		a.logger.Debug("Analysis already in flight, ignoring trigger",
			zap.String("message_id", view.MessageID))
		return nil, nil
	}
	if !force && !a.opts.RealTime && a.lastID == view.MessageID {
		a.mu.Unlock()
		a.logger.Debug("Real-time monitoring off, keeping existing analysis",
			zap.String("message_id", view.MessageID))
		return nil, nil
	}
	a.inFlight[view.MessageID] = struct{}{}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.inFlight, view.MessageID)
		a.mu.Unlock()
	}()

	if a.opts.CacheEnabled && a.cache != nil {
		if cached, err := a.cache.Get(ctx, view.MessageID); err == nil && cached != nil {
			a.logger.Debug("Analysis cache hit", zap.String("message_id", view.MessageID))
			a.mu.Lock()
			a.lastID = view.MessageID
			a.mu.Unlock()
			return cached, nil
		}
	}

	analysis := a.resolve(ctx, view)
	if analysis == nil {
		return nil, nil
	}

	// Commit only if this message is still the one on screen.
	a.mu.Lock()
	stale := a.activeID != view.MessageID
	if !stale {
		a.lastID = view.MessageID
	}
	a.mu.Unlock()
	if stale {
		a.logger.Debug("Discarding stale analysis",
			zap.String("message_id", view.MessageID))
		return nil, nil
	}

	if a.opts.CacheEnabled && a.cache != nil {
		if err := a.cache.Set(ctx, analysis, a.opts.CacheTTL); err != nil {
			a.logger.Error("Failed to cache analysis", zap.Error(err))
		}
	}

	if a.notifier != nil && analysis.RiskLevel == RiskHigh {
		if err := a.notifier.Notify(ctx, analysis); err != nil {
			a.logger.Debug("Notification failed", zap.Error(err))
		}
	}

	return analysis, nil
}

// ForceAnalyze drops any cached result for the message and re-runs the
// pipeline.
func (a *Analyzer) ForceAnalyze(ctx context.Context, view View) (*EmailAnalysis, error) {
	if a.cache != nil && view.MessageID != "" {
		if err := a.cache.Delete(ctx, view.MessageID); err != nil {
			a.logger.Debug("Failed to evict cached analysis", zap.Error(err))
		}
	}
	return a.analyze(ctx, view, true)
}

// resolve runs the provider chain, applies context overrides and scoring.
func (a *Analyzer) resolve(ctx context.Context, view View) *EmailAnalysis {
	var (
		chosen *Evidence
		merged Evidence
	)

	for _, p := range a.providers {
		ev := a.gather(ctx, p, view)
		if ev == nil {
			continue
		}

		// Context flags count even from sources that lost the
		// per-mechanism contest.
		merged.InSpamFolder = merged.InSpamFolder || ev.InSpamFolder
		merged.DangerBanner = merged.DangerBanner || ev.DangerBanner
		merged.GenericAuth = merged.GenericAuth || ev.GenericAuth
		if merged.Sender == "" {
			merged.Sender = ev.Sender
			merged.Subject = ev.Subject
			merged.Domain = ev.Domain
			merged.Text = ev.Text
		}

		if chosen == nil && ev.Concrete() {
			chosen = ev
			a.logger.Debug("Evidence source selected",
				zap.String("message_id", view.MessageID),
				zap.String("source", p.Name()))
		}
	}

	spf, dkim, dmarc := UnknownCheck("SPF"), UnknownCheck("DKIM"), UnknownCheck("DMARC")
	source := ""
	hasAuthResults := false
	if chosen != nil {
		spf, dkim, dmarc = chosen.SPF, chosen.DKIM, chosen.DMARC
		source = chosen.Source
		hasAuthResults = chosen.HasAuthResults
		if chosen.Sender != "" {
			merged.Sender = chosen.Sender
			merged.Subject = chosen.Subject
			merged.Domain = chosen.Domain
		}
		if chosen.Text != "" {
			merged.Text = chosen.Text
		}
	}

	spamContext := merged.InSpamFolder || merged.DangerBanner

	// Spam placement is a tiebreaker for otherwise-unknown evidence, never
	// a mechanism override.
	if chosen == nil && spamContext {
		suspicious := AuthCheckResult{
			Status:      NormalizeStatus("suspicious"),
			Explanation: spamContextExplanation,
		}
		spf, dkim, dmarc = suspicious, suspicious, suspicious
		source = "spam-context"
	} else if merged.GenericAuth {
		// Gmail frequently shows only a generic verified indicator for
		// senders it already trusts.
		uplift := func(c AuthCheckResult) AuthCheckResult {
			if c.Status != StatusUnknown {
				return c
			}
			return AuthCheckResult{
				Status:      StatusPass,
				Explanation: "email appears authenticated by Gmail",
			}
		}
		spf, dkim, dmarc = uplift(spf), uplift(dkim), uplift(dmarc)
		if source == "" {
			source = "dom"
		}
	}

	classification := a.classify(ctx, merged.Text, merged.Subject)

	domain := merged.Domain
	if domain == "" {
		domain = senderDomain(merged.Sender)
	}

	in := ScoreInput{
		SPF:                 spf,
		DKIM:                dkim,
		DMARC:               dmarc,
		HadConcreteEvidence: chosen != nil,
		IsKnownProvider:     a.knownFn(domain),
		SpamContext:         spamContext,
	}
	if classification != nil {
		in.Classification = classification.Label
	}
	scored := Score(a.opts.Mode, in)

	analysis := &EmailAnalysis{
		MessageID:       view.MessageID,
		Sender:          merged.Sender,
		Subject:         merged.Subject,
		SPF:             spf,
		DKIM:            dkim,
		DMARC:           dmarc,
		Domain:          domain,
		IsKnownProvider: in.IsKnownProvider,
		HasAuthResults:  hasAuthResults,
		IsInSpamFolder:  merged.InSpamFolder,
		SecurityScore:   scored.SecurityScore,
		RiskLevel:       scored.RiskLevel,
		Recommendations: Recommendations(in, scored.RiskLevel),
		EvidenceSource:  source,
		ScoringMode:     string(a.opts.Mode),
		AnalyzedAt:      a.now(),
	}
	if classification != nil {
		analysis.AIClassification = classification.Label
		analysis.AIProbabilities = classification.Probabilities
	}
	return analysis
}

// gather runs one provider attempt under the bounded wait. Failures are
// recovered by falling through to the next source.
func (a *Analyzer) gather(ctx context.Context, p EvidenceProvider, view View) *Evidence {
	attemptCtx, cancel := context.WithTimeout(ctx, a.opts.AttemptTimeout)
	defer cancel()

	ev, err := p.Gather(attemptCtx, view)
	if err != nil {
		a.logger.Debug("Evidence source unavailable",
			zap.String("source", p.Name()),
			zap.Error(err))
		return nil
	}
	return ev
}

// classify calls the content classifier, if one is configured. Any failure
// simply leaves the classification off the record.
func (a *Analyzer) classify(ctx context.Context, text, subject string) *Classification {
	if a.classifier == nil {
		return nil
	}
	input := strings.TrimSpace(subject + "\n" + text)
	if input == "" {
		return nil
	}

	attemptCtx, cancel := context.WithTimeout(ctx, a.opts.AttemptTimeout)
	defer cancel()

	result, err := a.classifier.Classify(attemptCtx, input)
	if err != nil {
		a.logger.Debug("Content classification unavailable", zap.Error(err))
		return nil
	}
	return result
}

// senderDomain extracts the domain part of an address like
// `Name <user@example.com>` or a bare user@example.com.
func senderDomain(sender string) string {
	s := sender
	if i := strings.LastIndex(s, "<"); i >= 0 {
		s = s[i+1:]
		s = strings.TrimSuffix(strings.TrimSpace(s), ">")
	}
	at := strings.LastIndex(s, "@")
	if at < 0 || at == len(s)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s[at+1:]))
}
