// Package bedrock implements the content-classification port on Amazon
// Bedrock models.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/utils"
	"go.uber.org/zap"
)

// Client classifies message text with a Bedrock-hosted model.
type Client struct {
	client      *bedrockruntime.Client
	modelID     string
	maxTokens   int
	temperature float32
	topP        float32
	maxChars    int
	logger      *zap.Logger
	processor   *utils.TextProcessor
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

// NewClient creates a Bedrock classifier in the given region.
func NewClient(
	region string,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxChars int,
	processor *utils.TextProcessor,
	logger *zap.Logger,
) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &Client{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		maxChars:    maxChars,
		logger:      logger,
		processor:   processor,
	}, nil
}

func (c *Client) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.")
}

// Classify implements core.Classifier.
func (c *Client) Classify(ctx context.Context, text string) (*core.Classification, error) {
	cleaned := c.processor.PrepareForClassification(text, c.maxChars)
	prompt := fmt.Sprintf(promptFormat, cleaned)

	var payload []byte
	var err error
	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := extractText(resp.Body, c.isAnthropicModel())
	if err != nil {
		return nil, err
	}

	parsed, err := parseClassification(responseText)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Bedrock classification",
		zap.String("model", c.modelID),
		zap.String("label", parsed.Label))
	return &core.Classification{
		Label:         parsed.Label,
		Probabilities: parsed.Probabilities,
	}, nil
}

// extractText pulls the model's text out of the provider-specific response
// envelope.
func extractText(body []byte, anthropic bool) (string, error) {
	if anthropic {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal model response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	default:
		return string(body), nil
	}
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
