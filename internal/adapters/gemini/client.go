// Package gemini implements the content-classification port on Google
// Gemini models.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client classifies message text with a Gemini model.
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	maxChars  int
	logger    *zap.Logger
	processor *utils.TextProcessor
}

type classificationResponse struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

const promptFormat = `You are an email content classifier. Classify the following email text into exactly one of: Normal, Fraudulent, Harassing, Suspicious.
Respond with a JSON object containing:
- label: one of the four class names
- probabilities: an object mapping each of the four class names to a probability between 0 and 1, summing to 1

Email text:
%s

Respond only with the JSON object and nothing else.`

// NewClient creates a new Gemini classifier client.
func NewClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxChars int,
	processor *utils.TextProcessor,
	logger *zap.Logger,
) (*Client, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Client{
		client:    client,
		model:     model,
		modelName: modelName,
		maxChars:  maxChars,
		logger:    logger,
		processor: processor,
	}, nil
}

// Close closes the Gemini client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify implements core.Classifier.
func (c *Client) Classify(ctx context.Context, text string) (*core.Classification, error) {
	cleaned := c.processor.PrepareForClassification(text, c.maxChars)
	prompt := fmt.Sprintf(promptFormat, cleaned)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var responseText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			responseText += string(t)
		}
	}

	parsed, err := parseClassification(responseText)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Gemini classification",
		zap.String("model", c.modelName),
		zap.String("label", parsed.Label))
	return &core.Classification{
		Label:         parsed.Label,
		Probabilities: parsed.Probabilities,
	}, nil
}

// parseClassification decodes the model's JSON reply, tolerating prose or
// code fences around the object.
func parseClassification(responseText string) (*classificationResponse, error) {
	var parsed classificationResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err == nil {
		return &parsed, nil
	}

	jsonStart := -1
	jsonEnd := -1
	for i := 0; i < len(responseText); i++ {
		if responseText[i] == '{' {
			jsonStart = i
			break
		}
	}
	for i := len(responseText) - 1; i >= 0; i-- {
		if responseText[i] == '}' {
			jsonEnd = i + 1
			break
		}
	}
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("failed to extract JSON from model response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return &parsed, nil
}
