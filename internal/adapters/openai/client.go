// Package openai implements the content-classification port on OpenAI chat
// models, for deployments without the dedicated classification service.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client classifies message text with an OpenAI chat model.
type Client struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	maxChars    int
	logger      *zap.Logger
	processor   *utils.TextProcessor
}

// classificationResponse is the structured JSON the model is asked for.
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

// NewClient creates a new OpenAI classifier client.
func NewClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxChars int,
	processor *utils.TextProcessor,
	logger *zap.Logger,
) *Client {
	return &Client{
		client:      openai.NewClient(apiKey),
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		maxChars:    maxChars,
		logger:      logger,
		processor:   processor,
	}
}

// Classify implements core.Classifier.
func (c *Client) Classify(ctx context.Context, text string) (*core.Classification, error) {
	cleaned := c.processor.PrepareForClassification(text, c.maxChars)
	prompt := fmt.Sprintf(promptFormat, cleaned)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email content classifier. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: "json"}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := parseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("OpenAI classification",
		zap.String("model", c.modelName),
		zap.String("label", parsed.Label))
	return &core.Classification{
		Label:         parsed.Label,
		Probabilities: parsed.Probabilities,
	}, nil
}

// parseClassification decodes the model's JSON reply, tolerating prose
// around the object.
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
