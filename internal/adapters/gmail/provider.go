package gmail

import (
	"context"
	"fmt"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/policy"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Provider fetches message headers by id through the Gmail API. It is the
// most trustworthy evidence source: the fetched headers carry full
// Authentication-Results fidelity.
type Provider struct {
	svc      *gmailapi.Service
	resolver core.TXTResolver
	logger   *zap.Logger
}

// tokenSourceAdapter bridges TokenProvider to oauth2.TokenSource.
type tokenSourceAdapter struct {
	provider TokenProvider
}

func (a *tokenSourceAdapter) Token() (*oauth2.Token, error) {
	token, expiry, err := a.provider.Token(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, Expiry: expiry}, nil
}

// NewProvider creates the API evidence provider. The token provider is
// wrapped with a cache so a granted token is reused until expiry.
func NewProvider(ctx context.Context, tokens TokenProvider, resolver core.TXTResolver, logger *zap.Logger) (*Provider, error) {
	cached := NewCachingTokenProvider(tokens)
	svc, err := gmailapi.NewService(ctx,
		option.WithTokenSource(&tokenSourceAdapter{provider: cached}))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Provider{svc: svc, resolver: resolver, logger: logger}, nil
}

// Name implements core.EvidenceProvider.
func (p *Provider) Name() string { return "api" }

// Gather fetches the message's headers and runs the header pipeline over
// them. Auth or fetch failures are returned as errors so the resolver can
// fall back to lower-fidelity sources.
func (p *Provider) Gather(ctx context.Context, view core.View) (*core.Evidence, error) {
	id := p.resolveID(ctx, view)
	if id == "" {
		return nil, fmt.Errorf("gmail: no API-valid message id for %q", view.MessageID)
	}

	msg, err := p.svc.Users.Messages.Get("me", id).
		Format("metadata").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: message fetch failed: %w", err)
	}

	ev := policy.BuildEvidence(ctx, rebuildHeaderBlock(msg), p.Name(), p.resolver)
	ev.Text = msg.Snippet
	for _, label := range msg.LabelIds {
		if label == "SPAM" {
			ev.InSpamFolder = true
		}
	}

	p.logger.Debug("API evidence gathered",
		zap.String("message_id", view.MessageID),
		zap.Bool("auth_results", ev.HasAuthResults))
	return ev, nil
}

// resolveID validates the UI-exposed id with a lightweight probe before
// trusting it, falling back to the DOM-derived legacy id. The UI token is
// not guaranteed to be API-valid.
func (p *Provider) resolveID(ctx context.Context, view core.View) string {
	for _, candidate := range []string{view.MessageID, view.LegacyID} {
		if candidate == "" {
			continue
		}
		if p.probe(ctx, candidate) {
			return candidate
		}
	}
	return ""
}

// probe checks an id with a minimal-format fetch.
func (p *Provider) probe(ctx context.Context, id string) bool {
	_, err := p.svc.Users.Messages.Get("me", id).
		Format("minimal").Fields("id").Context(ctx).Do()
	if err != nil {
		p.logger.Debug("Message id probe failed",
			zap.String("id", id),
			zap.Error(err))
		return false
	}
	return true
}

// rebuildHeaderBlock reassembles a raw header block from the API's
// structured header list so it can go through the same parser as pasted
// text.
func rebuildHeaderBlock(msg *gmailapi.Message) string {
	if msg.Payload == nil {
		return ""
	}
	var sb strings.Builder
	for _, h := range msg.Payload.Headers {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString("\n")
	}
	return sb.String()
}
