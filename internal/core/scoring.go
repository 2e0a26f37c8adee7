package core

// ScoringMode selects one of the two scoring formulas. Both are kept as
// configured behaviors: auth-only weighting predates the content classifier
// and remains in use where no classifier is deployed.
type ScoringMode string

const (
	// ScoringAuthOnly weights SPF 30, DKIM 35, DMARC 35 and applies
	// context bonuses/penalties.
	ScoringAuthOnly ScoringMode = "auth_only"

	// ScoringComposite gives authentication up to 60 points and content
	// classification up to 40.
	ScoringComposite ScoringMode = "composite"
)

// ScoreInput is the part of an analysis the scoring engine looks at.
type ScoreInput struct {
	SPF   AuthCheckResult
	DKIM  AuthCheckResult
	DMARC AuthCheckResult

	// HadConcreteEvidence is true when any non-simulated per-mechanism
	// evidence existed at all.
	HadConcreteEvidence bool

	IsKnownProvider bool
	SpamContext     bool

	// Classification is empty when the classifier was unavailable.
	Classification string
}

// ScoreResult is the output of the scoring engine.
type ScoreResult struct {
	SecurityScore int
	RiskLevel     RiskLevel
}

// Score converts per-check verdicts plus optional content classification
// into a bounded composite score and risk tier. Pure function: identical
// inputs always produce identical outputs.
func Score(mode ScoringMode, in ScoreInput) ScoreResult {
	var score int
	switch mode {
	case ScoringComposite:
		score = compositeScore(in)
	default:
		score = authOnlyScore(in)
	}

	score = clamp(score, 0, 100)
	return ScoreResult{
		SecurityScore: score,
		RiskLevel:     riskTier(score),
	}
}

// authOnlyScore implements the authentication-only weighting:
// SPF 30, DKIM 35, DMARC 35, plus context adjustments.
func authOnlyScore(in ScoreInput) int {
	score := mechanismPoints(in.SPF.Status, 30) +
		mechanismPoints(in.DKIM.Status, 35) +
		mechanismPoints(in.DMARC.Status, 35)

	if in.HadConcreteEvidence {
		score += 10
	}

	if !in.IsKnownProvider && weakCheckCount(in) >= 2 {
		score -= 20
	}

	if in.SpamContext {
		score -= 30
	}

	return score
}

// mechanismPoints applies the shared weight ladder: pass = full weight,
// softfail/neutral = half, present = 20%, everything else zero.
func mechanismPoints(status AuthStatus, weight int) int {
	switch status {
	case StatusPass:
		return weight
	case StatusSoftfail, StatusNeutral:
		return weight / 2
	case StatusPresent:
		return weight / 5
	default:
		return 0
	}
}

// weakCheckCount counts checks that are failed or carry no evidence.
func weakCheckCount(in ScoreInput) int {
	n := 0
	for _, st := range []AuthStatus{in.SPF.Status, in.DKIM.Status, in.DMARC.Status} {
		if st == StatusFail || st == StatusUnknown {
			n++
		}
	}
	return n
}

// compositeScore implements the auth+content weighting: up to 60 points of
// authentication, up to 40 points of content classification.
func compositeScore(in ScoreInput) int {
	auth := compositeMechanismPoints(in.SPF.Status) +
		compositeMechanismPoints(in.DKIM.Status) +
		compositeMechanismPoints(in.DMARC.Status)

	return auth + contentPoints(in.Classification)
}

func compositeMechanismPoints(status AuthStatus) int {
	switch status {
	case StatusPass:
		return 20
	case StatusSoftfail, StatusNeutral, StatusPresent:
		return 10
	default:
		return 0
	}
}

// contentPoints maps the classifier label to its contribution. An absent
// classification scores the neutral default of 20.
func contentPoints(label string) int {
	switch label {
	case LabelNormal:
		return 40
	case LabelSuspicious:
		return 20
	case LabelHarassing:
		return 10
	case LabelFraudulent:
		return 0
	default:
		return 20
	}
}

// riskTier maps a clamped score to its tier. Shared by both modes.
func riskTier(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 50:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Recommendations builds the deterministic advice list for an analysis:
// per-mechanism failures first, then the no-authentication case, then a
// caution statement appropriate for the risk tier.
func Recommendations(in ScoreInput, risk RiskLevel) []string {
	var recs []string

	if in.SPF.Status == StatusFail {
		recs = append(recs, "SPF check failed: the sending server is not authorized for this domain")
	}
	if in.DKIM.Status == StatusFail {
		recs = append(recs, "DKIM check failed: the message signature did not verify")
	}
	if in.DMARC.Status == StatusFail {
		recs = append(recs, "DMARC check failed: the sender domain's policy rejects this message")
	}
	if in.SPF.Status == StatusNone && in.DKIM.Status == StatusNone {
		recs = append(recs, "No email authentication found for this sender at all")
	}

	switch risk {
	case RiskHigh:
		recs = append(recs, "Treat this message as untrusted: do not click links or open attachments")
	case RiskMedium:
		recs = append(recs, "Verify the sender through another channel before acting on this message")
	default:
		recs = append(recs, "No action needed: the message authenticated cleanly")
	}

	return recs
}
