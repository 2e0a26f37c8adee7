// Package gmail is the highest-preference evidence source: it fetches the
// full RFC-822 header list for a message through the Gmail REST API.
package gmail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// defaultTokenTTL is applied when the identity provider hands back a token
// without an expiry.
const defaultTokenTTL = time.Hour

// TokenProvider abstracts the host-platform identity capability that grants
// OAuth bearer tokens.
type TokenProvider interface {
	// Token returns a bearer token and its expiry.
	Token(ctx context.Context) (string, time.Time, error)
}

// OAuthTokenProvider obtains tokens from a standard OAuth2 refresh-token
// grant. If the primary grant fails it falls back to logging a consent URL
// for a manual flow; evidence from this source is skipped until consent is
// completed.
type OAuthTokenProvider struct {
	cfg          *oauth2.Config
	refreshToken string
	logger       *zap.Logger
}

// NewOAuthTokenProvider builds a provider from client credentials. scopes
// defaults to gmail.readonly.
func NewOAuthTokenProvider(clientID, clientSecret, refreshToken string, scopes []string, logger *zap.Logger) *OAuthTokenProvider {
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/gmail.readonly"}
	}
	return &OAuthTokenProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		},
		refreshToken: refreshToken,
		logger:       logger,
	}
}

// Token redeems the refresh token for a bearer token.
func (p *OAuthTokenProvider) Token(ctx context.Context) (string, time.Time, error) {
	if p.refreshToken == "" {
		// Primary grant unavailable: surface the manual consent flow.
		url := p.cfg.AuthCodeURL("state", oauth2.AccessTypeOffline)
		p.logger.Warn("No refresh token configured, manual consent required",
			zap.String("consent_url", url))
		return "", time.Time{}, fmt.Errorf("gmail: authentication grant unavailable")
	}

	src := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("gmail: token grant failed: %w", err)
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(defaultTokenTTL)
	}
	return tok.AccessToken, expiry, nil
}

// CachingTokenProvider caches a granted token until shortly before expiry.
type CachingTokenProvider struct {
	upstream TokenProvider
	now      func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewCachingTokenProvider(upstream TokenProvider) *CachingTokenProvider {
	return &CachingTokenProvider{upstream: upstream, now: time.Now}
}

func (c *CachingTokenProvider) Token(ctx context.Context) (string, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Refresh a minute early so in-flight requests don't race expiry.
	if c.token != "" && c.now().Add(time.Minute).Before(c.expiry) {
		return c.token, c.expiry, nil
	}

	token, expiry, err := c.upstream.Token(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	c.token = token
	c.expiry = expiry
	return token, expiry, nil
}
