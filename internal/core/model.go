package core

import (
	"time"
)

// AuthStatus is the canonical status every raw authentication token is
// normalized into before any scoring logic runs.
type AuthStatus string

const (
	StatusPass      AuthStatus = "pass"
	StatusFail      AuthStatus = "fail"
	StatusNone      AuthStatus = "none"
	StatusNeutral   AuthStatus = "neutral"
	StatusSoftfail  AuthStatus = "softfail"
	StatusTemperror AuthStatus = "temperror"
	StatusPermerror AuthStatus = "permerror"
	StatusPresent   AuthStatus = "present"
	StatusUnknown   AuthStatus = "unknown"
)

// AuthCheckResult is the verdict for a single mechanism (SPF, DKIM or DMARC).
// Details carries raw diagnostic fragments (smtp.mailfrom=, client-ip= ...);
// Explanation is a short human-readable cause, populated on fail/softfail/none
// when derivable.
type AuthCheckResult struct {
	Status      AuthStatus `json:"status"`
	Details     string     `json:"details,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
}

// RiskLevel is the discrete risk tier derived from the security score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// EmailAnalysis is the canonical record produced once per message-view event.
// It is immutable to consumers: a new trigger produces a new record that
// supersedes this one, nothing mutates it in place.
type EmailAnalysis struct {
	MessageID        string             `json:"message_id"`
	Sender           string             `json:"sender"`
	Subject          string             `json:"subject"`
	SPF              AuthCheckResult    `json:"spf"`
	DKIM             AuthCheckResult    `json:"dkim"`
	DMARC            AuthCheckResult    `json:"dmarc"`
	Domain           string             `json:"domain"`
	IsKnownProvider  bool               `json:"is_known_provider"`
	HasAuthResults   bool               `json:"has_auth_results"`
	IsInSpamFolder   bool               `json:"is_in_spam_folder"`
	SecurityScore    int                `json:"security_score"`
	RiskLevel        RiskLevel          `json:"risk_level"`
	Recommendations  []string           `json:"recommendations,omitempty"`
	AIClassification string             `json:"ai_classification,omitempty"`
	AIProbabilities  map[string]float64 `json:"ai_probabilities,omitempty"`
	EvidenceSource   string             `json:"evidence_source,omitempty"`
	ScoringMode      string             `json:"scoring_mode"`
	AnalyzedAt       time.Time          `json:"analyzed_at"`
}

// ViewKind distinguishes an open message from a list/inbox view.
type ViewKind string

const (
	ViewList    ViewKind = "list"
	ViewMessage ViewKind = "message"
)

// View is the triggering message-view event. LegacyID is the DOM-derived
// numeric identifier used when the UI-exposed MessageID is not API-valid.
type View struct {
	Kind      ViewKind
	MessageID string
	LegacyID  string
}

// Evidence is the normalized output of one evidence provider. A provider
// that cannot determine a mechanism leaves its check at StatusUnknown.
type Evidence struct {
	Source  string
	Sender  string
	Subject string
	Domain  string

	// Text is the visible message text, when the source exposes it. Used
	// only as classifier input, never for authentication verdicts.
	Text string

	SPF   AuthCheckResult
	DKIM  AuthCheckResult
	DMARC AuthCheckResult

	// HasAuthResults reports whether an explicit Authentication-Results
	// header was seen, as opposed to presence heuristics.
	HasAuthResults bool

	// InSpamFolder and DangerBanner describe page context, not mechanism
	// evidence. They only matter as a tiebreaker when no concrete
	// per-mechanism evidence was found.
	InSpamFolder bool
	DangerBanner bool

	// GenericAuth is set when the DOM showed an ambiguous
	// authenticated/verified signal without per-mechanism detail.
	GenericAuth bool
}

// Concrete reports whether at least one mechanism carries a verdict other
// than unknown.
func (e *Evidence) Concrete() bool {
	return e.SPF.Status != StatusUnknown ||
		e.DKIM.Status != StatusUnknown ||
		e.DMARC.Status != StatusUnknown
}

// Classification is the opaque result of the content-classification service.
type Classification struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Content-classification labels emitted by the classifier.
const (
	LabelNormal     = "Normal"
	LabelFraudulent = "Fraudulent"
	LabelHarassing  = "Harassing"
	LabelSuspicious = "Suspicious"
)
