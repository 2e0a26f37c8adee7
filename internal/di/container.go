package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailwarden/mailwarden/internal/adapters/httpserver"
	"github.com/mailwarden/mailwarden/internal/adapters/notify"
	"github.com/mailwarden/mailwarden/internal/config"
	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/factory"
	"github.com/mailwarden/mailwarden/internal/logging"
	"github.com/mailwarden/mailwarden/internal/providers"
	"github.com/mailwarden/mailwarden/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewDNSFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewEvidenceFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register TXT resolver
	if err := container.Provide(func(f *factory.DNSFactory) (core.TXTResolver, error) {
		return f.CreateResolver()
	}); err != nil {
		return nil, err
	}

	// Register evidence sources
	if err := container.Provide(func(f *factory.EvidenceFactory, resolver core.TXTResolver) *factory.EvidenceSources {
		return f.CreateSources(context.Background(), resolver)
	}); err != nil {
		return nil, err
	}

	// Register known provider registry
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *providers.Registry {
		return providers.NewRegistry(cfg.GetStringSlice("trust.known_provider_domains"), logger)
	}); err != nil {
		return nil, err
	}

	// Register notifier
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.Notifier {
		if !cfg.GetBool("monitor.show_notifications") {
			return nil
		}
		return notify.NewLogNotifier(logger)
	}); err != nil {
		return nil, err
	}

	// Register analyzer
	if err := container.Provide(func(
		cfg *config.Config,
		sources *factory.EvidenceSources,
		classifier core.Classifier,
		cacheRepo core.CacheRepository,
		notifier core.Notifier,
		registry *providers.Registry,
		cacheFactory *factory.CacheFactory,
		logger *zap.Logger,
	) (*core.Analyzer, error) {
		attemptTimeout, err := cfg.GetDuration("monitor.attempt_timeout")
		if err != nil {
			return nil, err
		}
		cacheTTL, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		opts := core.AnalyzerOptions{
			AttemptTimeout: attemptTimeout,
			RealTime:       cfg.GetBool("monitor.real_time"),
			Mode:           core.ScoringMode(cfg.GetString("scoring.mode")),
			CacheEnabled:   cacheFactory.IsCacheEnabled(),
			CacheTTL:       cacheTTL,
		}
		return core.NewAnalyzer(
			sources.Chain,
			classifier,
			cacheRepo,
			notifier,
			registry.IsKnown,
			logger,
			opts,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register analysis server
	if err := container.Provide(func(
		cfg *config.Config,
		analyzer *core.Analyzer,
		sources *factory.EvidenceSources,
		logger *zap.Logger,
	) core.AnalysisServer {
		return httpserver.NewServer(
			analyzer,
			sources.DOM,
			sources.Manual,
			logger,
			cfg.GetString("server.listen_address"),
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
