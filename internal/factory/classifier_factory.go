package factory

import (
	"fmt"
	"time"

	"github.com/mailwarden/mailwarden/internal/adapters/bedrock"
	"github.com/mailwarden/mailwarden/internal/adapters/classifier"
	"github.com/mailwarden/mailwarden/internal/adapters/gemini"
	"github.com/mailwarden/mailwarden/internal/adapters/openai"
	"github.com/mailwarden/mailwarden/internal/config"
	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/utils"
	"go.uber.org/zap"
)

// ClassifierFactory creates content classifiers
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a content classifier based on the configuration
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	clsConfig := f.cfg.GetClassifier()

	switch clsConfig.Provider {
	case "http":
		timeout, err := time.ParseDuration(clsConfig.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier timeout: %w", err)
		}
		return classifier.NewHTTPClient(
			clsConfig.ServerURL,
			timeout,
			clsConfig.MaxBodySize,
			f.textProcessor,
			f.logger,
		), nil
	case "openai":
		oa := f.cfg.GetOpenAI()
		return openai.NewClient(
			oa.APIKey,
			oa.ModelName,
			oa.MaxTokens,
			oa.Temperature,
			oa.TopP,
			clsConfig.MaxBodySize,
			f.textProcessor,
			f.logger,
		), nil
	case "gemini":
		gm := f.cfg.GetGemini()
		return gemini.NewClient(
			gm.APIKey,
			gm.ModelName,
			gm.MaxTokens,
			gm.Temperature,
			gm.TopP,
			clsConfig.MaxBodySize,
			f.textProcessor,
			f.logger,
		)
	case "bedrock":
		br := f.cfg.GetBedrock()
		return bedrock.NewClient(
			br.Region,
			br.ModelID,
			br.MaxTokens,
			br.Temperature,
			br.TopP,
			clsConfig.MaxBodySize,
			f.textProcessor,
			f.logger,
		)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", clsConfig.Provider)
	}
}
