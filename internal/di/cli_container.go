package di

import (
	"flag"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailwarden/mailwarden/internal/adapters/manual"
	"github.com/mailwarden/mailwarden/internal/config"
	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/factory"
	"github.com/mailwarden/mailwarden/internal/logging"
	"github.com/mailwarden/mailwarden/internal/providers"
	"github.com/mailwarden/mailwarden/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Scoring flags
	Mode string

	// DNS flags
	DNSProvider  string
	DNSEndpoint  string
	DNSTimeout   string
	CacheTimeout string

	// Classifier flags
	ClassifierURL string
	MaxBodySize   int

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Scoring flags
	flag.StringVar(&flags.Mode, "mode", "auth_only", "Scoring mode (auth_only, composite)")

	// DNS flags
	flag.StringVar(&flags.DNSProvider, "dns-provider", "doh", "DNS provider (doh, direct)")
	flag.StringVar(&flags.DNSEndpoint, "dns-endpoint", "https://dns.google/resolve", "DNS-over-HTTPS endpoint")
	flag.StringVar(&flags.DNSTimeout, "dns-timeout", "5s", "DNS lookup timeout")
	flag.StringVar(&flags.CacheTimeout, "dns-cache-timeout", "5m", "DNS record cache timeout")

	// Classifier flags
	flag.StringVar(&flags.ClassifierURL, "classifier-url", "", "Content classification service URL (empty disables)")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum body size to send to the classifier")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input message file (use stdin if not specified)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewDNSFactory); err != nil {
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

	// Register TXT resolver
	if err := container.Provide(func(f *factory.DNSFactory) (core.TXTResolver, error) {
		return f.CreateResolver()
	}); err != nil {
		return nil, err
	}

	// Register manual evidence provider fed from the input file
	if err := container.Provide(func(resolver core.TXTResolver, logger *zap.Logger) *manual.Provider {
		return manual.NewProvider(resolver, logger)
	}); err != nil {
		return nil, err
	}

	// Register known provider registry
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *providers.Registry {
		return providers.NewRegistry(cfg.GetStringSlice("trust.known_provider_domains"), logger)
	}); err != nil {
		return nil, err
	}

	// Register analyzer with no cache or notifier
	if err := container.Provide(func(
		cfg *config.Config,
		source *manual.Provider,
		classifier core.Classifier,
		registry *providers.Registry,
		logger *zap.Logger,
	) *core.Analyzer {
		opts := core.AnalyzerOptions{
			AttemptTimeout: 10 * time.Second,
			RealTime:       true,
			Mode:           core.ScoringMode(cfg.GetString("scoring.mode")),
			CacheEnabled:   false,
		}
		return core.NewAnalyzer(
			[]core.EvidenceProvider{source},
			classifier,
			nil, // No cache for CLI
			nil, // No notifications for CLI
			registry.IsKnown,
			logger,
			opts,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("cli.verbose", flags.Verbose)

	// Scoring
	v.Set("scoring.mode", flags.Mode)

	// DNS
	v.Set("dns.provider", flags.DNSProvider)
	v.Set("dns.endpoint", flags.DNSEndpoint)
	v.Set("dns.timeout", flags.DNSTimeout)
	v.Set("dns.cache_timeout", flags.CacheTimeout)

	// Classifier
	if flags.ClassifierURL != "" {
		v.Set("classifier.provider", "http")
		v.Set("classifier.server_url", flags.ClassifierURL)
	} else {
		v.Set("classifier.provider", "none")
	}
	v.Set("classifier.max_body_size", flags.MaxBodySize)

	return config.NewFromViper(v)
}
