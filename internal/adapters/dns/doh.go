// Package dns provides TXT resolution over DNS-over-HTTPS or plain DNS,
// fronted by a time-bounded cache.
package dns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const typeTXT = 16

// DoHClient resolves TXT records through a DNS-over-HTTPS endpoint
// (dns.google, cloudflare-dns.com, or any resolver speaking the JSON API).
type DoHClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewDoHClient creates a DoH resolver against the given endpoint, e.g.
// "https://dns.google/resolve".
func NewDoHClient(endpoint string, timeout time.Duration, logger *zap.Logger) *DoHClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DoHClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// dohAnswer is one entry of the JSON Answer array.
type dohAnswer struct {
	Type int    `json:"type"`
	Data string `json:"data"`
}

type dohResponse struct {
	Status int         `json:"Status"`
	Answer []dohAnswer `json:"Answer"`
}

// LookupTXT fetches TXT records for the domain. Only type 16 answers are
// kept; surrounding quotes are stripped.
func (c *DoHClient) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	q := url.Values{}
	q.Set("name", domain)
	q.Set("type", "TXT")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build DoH request: %w", err)
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("DoH query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DoH query returned status %d", resp.StatusCode)
	}

	var parsed dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode DoH response: %w", err)
	}

	var records []string
	for _, ans := range parsed.Answer {
		if ans.Type != typeTXT {
			continue
		}
		records = append(records, unquoteTXT(ans.Data))
	}

	c.logger.Debug("DoH TXT lookup",
		zap.String("domain", domain),
		zap.Int("records", len(records)))
	return records, nil
}

// unquoteTXT strips the surrounding quotes DoH endpoints put on TXT data,
// rejoining multi-string records.
func unquoteTXT(data string) string {
	data = strings.TrimSpace(data)
	if strings.Contains(data, `" "`) {
		parts := strings.Split(data, `" "`)
		for i, p := range parts {
			parts[i] = strings.Trim(p, `"`)
		}
		return strings.Join(parts, "")
	}
	return strings.Trim(data, `"`)
}
