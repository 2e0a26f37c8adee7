package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name     string
	evidence *Evidence
	err      error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Gather(ctx context.Context, view View) (*Evidence, error) {
	f.calls++
	return f.evidence, f.err
}

// blockingProvider parks Gather for the configured message until release is
// closed, so tests can overlap a second trigger with a running analysis.
type blockingProvider struct {
	name     string
	blockFor string
	entered  chan struct{}
	release  chan struct{}

	mu    sync.Mutex
	calls int
}

func newBlockingProvider(name, blockFor string) *blockingProvider {
	return &blockingProvider{
		name:     name,
		blockFor: blockFor,
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

func (b *blockingProvider) Name() string { return b.name }

func (b *blockingProvider) Gather(ctx context.Context, view View) (*Evidence, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if view.MessageID == b.blockFor {
		b.entered <- struct{}{}
		<-b.release
	}
	return passEvidence(b.name), nil
}

func (b *blockingProvider) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fakeClassifier struct {
	result *Classification
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	return f.result, f.err
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*EmailAnalysis
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*EmailAnalysis)}
}

func (f *fakeCache) Get(ctx context.Context, messageID string) (*EmailAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.entries[messageID]; ok {
		return a, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeCache) Set(ctx context.Context, analysis *EmailAnalysis, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[analysis.MessageID] = analysis
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, messageID)
	f.deletes++
	return nil
}

func (f *fakeCache) Cleanup(ctx context.Context) error { return nil }

type fakeNotifier struct {
	mu    sync.Mutex
	calls []*EmailAnalysis
}

func (f *fakeNotifier) Notify(ctx context.Context, analysis *EmailAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, analysis)
	return nil
}

func passEvidence(source string) *Evidence {
	return &Evidence{
		Source:         source,
		Sender:         "Alice <alice@example.com>",
		Subject:        "hello",
		Domain:         "example.com",
		SPF:            AuthCheckResult{Status: StatusPass},
		DKIM:           AuthCheckResult{Status: StatusPass},
		DMARC:          AuthCheckResult{Status: StatusPass},
		HasAuthResults: true,
	}
}

func unknownEvidence(source string) *Evidence {
	return &Evidence{
		Source: source,
		SPF:    UnknownCheck("SPF"),
		DKIM:   UnknownCheck("DKIM"),
		DMARC:  UnknownCheck("DMARC"),
	}
}

func newTestAnalyzer(t *testing.T, providers []EvidenceProvider, classifier Classifier, cache CacheRepository, notifier Notifier, opts AnalyzerOptions) *Analyzer {
	t.Helper()
	return NewAnalyzer(providers, classifier, cache, notifier, nil, zap.NewNop(), opts)
}

func TestAnalyzeListViewSuspends(t *testing.T) {
	p := &fakeProvider{name: "api", evidence: passEvidence("api")}
	a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{})

	analysis, err := a.Analyze(context.Background(), View{Kind: ViewList})
	require.NoError(t, err)
	assert.Nil(t, analysis)
	assert.Zero(t, p.calls)
}

func TestAnalyzeProviderPriority(t *testing.T) {
	api := &fakeProvider{name: "api", evidence: passEvidence("api")}
	dom := &fakeProvider{name: "dom", evidence: &Evidence{
		Source: "dom",
		SPF:    AuthCheckResult{Status: StatusFail},
		DKIM:   UnknownCheck("DKIM"),
		DMARC:  UnknownCheck("DMARC"),
	}}

	a := newTestAnalyzer(t, []EvidenceProvider{api, dom}, nil, nil, nil, AnalyzerOptions{})
	analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
	require.NoError(t, err)
	require.NotNil(t, analysis)

	assert.Equal(t, "api", analysis.EvidenceSource)
	assert.Equal(t, StatusPass, analysis.SPF.Status)
	assert.True(t, analysis.HasAuthResults)
}

func TestAnalyzeFallsThroughUnavailableSource(t *testing.T) {
	broken := &fakeProvider{name: "api", err: errors.New("grant unavailable")}
	manual := &fakeProvider{name: "manual", evidence: passEvidence("manual")}

	a := newTestAnalyzer(t, []EvidenceProvider{broken, manual}, nil, nil, nil, AnalyzerOptions{})
	analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, "manual", analysis.EvidenceSource)
}

func TestAnalyzeSpamContextOverride(t *testing.T) {
	t.Run("fires only without concrete evidence", func(t *testing.T) {
		ev := unknownEvidence("dom")
		ev.InSpamFolder = true
		p := &fakeProvider{name: "dom", evidence: ev}

		a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{})
		analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
		require.NoError(t, err)
		require.NotNil(t, analysis)

		assert.Equal(t, StatusFail, analysis.SPF.Status)
		assert.Equal(t, StatusFail, analysis.DKIM.Status)
		assert.Equal(t, StatusFail, analysis.DMARC.Status)
		assert.Equal(t, "found in spam folder or flagged dangerous", analysis.SPF.Explanation)
		assert.Equal(t, "spam-context", analysis.EvidenceSource)
		assert.Equal(t, 0, analysis.SecurityScore)
		assert.Equal(t, RiskHigh, analysis.RiskLevel)
	})

	t.Run("never overrides concrete evidence", func(t *testing.T) {
		ev := passEvidence("api")
		ev.InSpamFolder = true
		p := &fakeProvider{name: "api", evidence: ev}

		a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{})
		analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
		require.NoError(t, err)
		require.NotNil(t, analysis)

		assert.Equal(t, StatusPass, analysis.SPF.Status)
		assert.True(t, analysis.IsInSpamFolder)
		// The spam-context score penalty still applies.
		assert.Equal(t, 80, analysis.SecurityScore)
	})
}

func TestAnalyzeGenericAuthUplift(t *testing.T) {
	ev := unknownEvidence("dom")
	ev.GenericAuth = true
	p := &fakeProvider{name: "dom", evidence: ev}

	a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{})
	analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
	require.NoError(t, err)
	require.NotNil(t, analysis)

	assert.Equal(t, StatusPass, analysis.SPF.Status)
	assert.Equal(t, StatusPass, analysis.DKIM.Status)
	assert.Equal(t, StatusPass, analysis.DMARC.Status)
	assert.Equal(t, "email appears authenticated by Gmail", analysis.SPF.Explanation)
}

func TestAnalyzeCaching(t *testing.T) {
	p := &fakeProvider{name: "api", evidence: passEvidence("api")}
	cache := newFakeCache()
	a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, cache, nil, AnalyzerOptions{
		RealTime:     true,
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	})

	view := View{Kind: ViewMessage, MessageID: "m1"}
	first, err := a.Analyze(context.Background(), view)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, p.calls)

	second, err := a.Analyze(context.Background(), view)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, p.calls, "cache hit must not re-gather")

	forced, err := a.ForceAnalyze(context.Background(), view)
	require.NoError(t, err)
	require.NotNil(t, forced)
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, 1, cache.deletes)
}

func TestAnalyzeIdempotentWithFixedClock(t *testing.T) {
	p := &fakeProvider{name: "api", evidence: passEvidence("api")}
	a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{RealTime: true})

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a.SetClock(func() time.Time { return fixed })

	view := View{Kind: ViewMessage, MessageID: "m1"}
	first, err := a.Analyze(context.Background(), view)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), view)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, fixed, first.AnalyzedAt)
}

func TestAnalyzeRealTimeGate(t *testing.T) {
	t.Run("re-trigger is a no-op when real-time monitoring is off", func(t *testing.T) {
		p := &fakeProvider{name: "api", evidence: passEvidence("api")}
		a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{})

		view := View{Kind: ViewMessage, MessageID: "m1"}
		first, err := a.Analyze(context.Background(), view)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := a.Analyze(context.Background(), view)
		require.NoError(t, err)
		assert.Nil(t, second)
		assert.Equal(t, 1, p.calls, "gated re-trigger must not re-gather")
	})

	t.Run("a different message still analyzes", func(t *testing.T) {
		p := &fakeProvider{name: "api", evidence: passEvidence("api")}
		a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{})

		first, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
		require.NoError(t, err)
		require.NotNil(t, first)

		other, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m2"})
		require.NoError(t, err)
		require.NotNil(t, other)
		assert.Equal(t, 2, p.calls)
	})

	t.Run("force bypasses the gate", func(t *testing.T) {
		p := &fakeProvider{name: "api", evidence: passEvidence("api")}
		a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{})

		view := View{Kind: ViewMessage, MessageID: "m1"}
		first, err := a.Analyze(context.Background(), view)
		require.NoError(t, err)
		require.NotNil(t, first)

		forced, err := a.ForceAnalyze(context.Background(), view)
		require.NoError(t, err)
		require.NotNil(t, forced)
		assert.Equal(t, 2, p.calls)
	})

	t.Run("real-time monitoring re-analyzes on every trigger", func(t *testing.T) {
		p := &fakeProvider{name: "api", evidence: passEvidence("api")}
		a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{RealTime: true})

		view := View{Kind: ViewMessage, MessageID: "m1"}
		for i := 0; i < 2; i++ {
			analysis, err := a.Analyze(context.Background(), view)
			require.NoError(t, err)
			require.NotNil(t, analysis)
		}
		assert.Equal(t, 2, p.calls)
	})
}

func TestAnalyzeSingleFlightPerMessage(t *testing.T) {
	p := newBlockingProvider("api", "m1")
	a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{
		AttemptTimeout: time.Minute,
		RealTime:       true,
	})

	type outcome struct {
		analysis *EmailAnalysis
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
		done <- outcome{analysis, err}
	}()
	<-p.entered

	// Second trigger for the same message while the first is running.
	repeat, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
	require.NoError(t, err)
	assert.Nil(t, repeat)
	assert.Equal(t, 1, p.callCount(), "in-flight trigger must not re-gather")

	close(p.release)
	first := <-done
	require.NoError(t, first.err)
	require.NotNil(t, first.analysis)
	assert.Equal(t, "m1", first.analysis.MessageID)
}

func TestAnalyzeDiscardsStaleResult(t *testing.T) {
	p := newBlockingProvider("api", "m1")
	a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{
		AttemptTimeout: time.Minute,
		RealTime:       true,
	})

	type outcome struct {
		analysis *EmailAnalysis
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
		done <- outcome{analysis, err}
	}()
	<-p.entered

	// The viewer moves on to another message while m1 is still resolving.
	other, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m2"})
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, "m2", other.MessageID)

	close(p.release)
	first := <-done
	require.NoError(t, first.err)
	assert.Nil(t, first.analysis, "result for a message no longer on screen is discarded")
}

func TestAnalyzeNotifiesOnHighRisk(t *testing.T) {
	ev := unknownEvidence("dom")
	ev.DangerBanner = true
	p := &fakeProvider{name: "dom", evidence: ev}
	notifier := &fakeNotifier{}

	a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, notifier, AnalyzerOptions{})
	analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
	require.NoError(t, err)
	require.NotNil(t, analysis)
	require.Equal(t, RiskHigh, analysis.RiskLevel)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "m1", notifier.calls[0].MessageID)
}

func TestAnalyzeClassification(t *testing.T) {
	t.Run("classifier result recorded", func(t *testing.T) {
		ev := passEvidence("api")
		ev.Text = "please wire the funds today"
		p := &fakeProvider{name: "api", evidence: ev}
		cls := &fakeClassifier{result: &Classification{
			Label:         LabelFraudulent,
			Probabilities: map[string]float64{LabelFraudulent: 0.97},
		}}

		a := newTestAnalyzer(t, []EvidenceProvider{p}, cls, nil, nil, AnalyzerOptions{
			Mode: ScoringComposite,
		})
		analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
		require.NoError(t, err)
		require.NotNil(t, analysis)

		assert.Equal(t, LabelFraudulent, analysis.AIClassification)
		assert.Equal(t, 0.97, analysis.AIProbabilities[LabelFraudulent])
		// 60 auth + 0 content
		assert.Equal(t, 60, analysis.SecurityScore)
	})

	t.Run("classifier failure omits the classification", func(t *testing.T) {
		ev := passEvidence("api")
		ev.Text = "hello"
		p := &fakeProvider{name: "api", evidence: ev}
		cls := &fakeClassifier{err: errors.New("service down")}

		a := newTestAnalyzer(t, []EvidenceProvider{p}, cls, nil, nil, AnalyzerOptions{})
		analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
		require.NoError(t, err)
		require.NotNil(t, analysis)
		assert.Empty(t, analysis.AIClassification)
	})
}

func TestAnalyzeSenderDomainFallback(t *testing.T) {
	ev := passEvidence("api")
	ev.Domain = ""
	p := &fakeProvider{name: "api", evidence: ev}

	a := newTestAnalyzer(t, []EvidenceProvider{p}, nil, nil, nil, AnalyzerOptions{})
	analysis, err := a.Analyze(context.Background(), View{Kind: ViewMessage, MessageID: "m1"})
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, "example.com", analysis.Domain)
}

func TestSenderDomain(t *testing.T) {
	cases := map[string]string{
		"Alice <alice@example.com>": "example.com",
		"bob@Example.COM":           "example.com",
		"no-address":                "",
		"trailing@":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, senderDomain(in), in)
	}
}
