// Package classifier implements the content-classification port against the
// bespoke HTTP classification service (POST /classify).
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/utils"
	"go.uber.org/zap"
)

// HTTPClient calls the classification service. The service is treated as an
// opaque, possibly-unavailable dependency: any failure is returned to the
// caller, which degrades by omitting the classification.
type HTTPClient struct {
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
	processor *utils.TextProcessor
	maxChars  int
}

// NewHTTPClient creates a classifier client for the given base URL
// (the aiServerUrl setting).
func NewHTTPClient(baseURL string, timeout time.Duration, maxChars int, processor *utils.TextProcessor, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 4096
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		processor: processor,
		maxChars:  maxChars,
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify sends the cleaned text and decodes the label/probabilities
// response.
func (c *HTTPClient) Classify(ctx context.Context, text string) (*core.Classification, error) {
	cleaned := c.processor.PrepareForClassification(text, c.maxChars)
	if cleaned == "" {
		return nil, fmt.Errorf("classifier: empty text after cleaning")
	}

	body, err := json.Marshal(classifyRequest{Text: cleaned})
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("classifier: service returned status %d", resp.StatusCode)
	}

	var result core.Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("classifier: failed to decode response: %w", err)
	}
	if result.Label == "" {
		return nil, fmt.Errorf("classifier: response carried no label")
	}

	c.logger.Debug("Content classified",
		zap.String("label", result.Label))
	return &result, nil
}
