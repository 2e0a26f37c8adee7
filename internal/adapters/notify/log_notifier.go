package notify

import (
	"context"

	"github.com/mailwarden/mailwarden/internal/core"
	"go.uber.org/zap"
)

// LogNotifier surfaces high-risk findings through the structured log. It is
// the default Notifier when no desktop notification channel is wired.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs a warning describing the risky message.
func (n *LogNotifier) Notify(ctx context.Context, analysis *core.EmailAnalysis) error {
	n.logger.Warn("High-risk email detected",
		zap.String("message_id", analysis.MessageID),
		zap.String("sender", analysis.Sender),
		zap.String("subject", analysis.Subject),
		zap.Int("security_score", analysis.SecurityScore),
		zap.String("risk_level", string(analysis.RiskLevel)),
		zap.Strings("recommendations", analysis.Recommendations))
	return nil
}
