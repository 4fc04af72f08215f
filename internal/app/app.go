// Package app wires configuration, storage, clients, and services into
// the shared core used by cmd/sieve-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kmorwood/sieve/internal/clients/alphavantage"
	"github.com/kmorwood/sieve/internal/clients/finnhub"
	"github.com/kmorwood/sieve/internal/clients/gemini"
	"github.com/kmorwood/sieve/internal/clients/yahoo"
	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/fetcher"
	"github.com/kmorwood/sieve/internal/interfaces"
	"github.com/kmorwood/sieve/internal/quotecache"
	"github.com/kmorwood/sieve/internal/ratelimit"
	"github.com/kmorwood/sieve/internal/scanner"
	"github.com/kmorwood/sieve/internal/storage"
	"github.com/kmorwood/sieve/internal/universe"
)

// App holds every initialized component. Shared between the HTTP server
// and any future entrypoints.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	JobStore    interfaces.JobStore
	Fetcher     interfaces.QuoteFetcher
	Universe    interfaces.UniverseResolver
	Scanner     *scanner.Manager
	Summarizer  interfaces.Summarizer
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, the provider chain, and
// the scan manager. configPath may be empty, in which case SIEVE_CONFIG
// and then the binary directory are consulted.
func NewApp(configPath string) (*App, error) {
	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("SIEVE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "sieve.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/sieve.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve a relative storage path against the binary directory so
	// the server is self-contained wherever it is installed.
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	jobStore, err := storage.NewJobStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}

	resolver, err := universe.NewResolver(config.Scanner.CustomIndices)
	if err != nil {
		jobStore.Close()
		return nil, fmt.Errorf("failed to build symbol universe: %w", err)
	}

	providers, limiter := buildProviderChain(config, logger)

	cache := quotecache.New(config.Cache.GetMaxEntries())
	quoteFetcher := fetcher.New(providers, cache, limiter, logger)

	scanManager := scanner.NewManager(quoteFetcher, resolver, jobStore, logger, config.Scanner)

	var summarizer interfaces.Summarizer
	if config.Summarizer.APIKey != "" {
		client, err := gemini.NewClient(context.Background(), config.Summarizer.APIKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Summarizer.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Summarizer unavailable, scan summaries disabled")
		} else {
			summarizer = client
		}
	} else {
		logger.Info().Msg("No summarizer API key configured, scan summaries disabled")
	}

	logger.Info().
		Str("environment", config.Environment).
		Str("storage", config.Storage.Path).
		Int("providers", len(providers)).
		Msg("Application initialized")

	return &App{
		Config:      config,
		Logger:      logger,
		JobStore:    jobStore,
		Fetcher:     quoteFetcher,
		Universe:    resolver,
		Scanner:     scanManager,
		Summarizer:  summarizer,
		StartupTime: time.Now().UTC(),
	}, nil
}

// buildProviderChain constructs the ranked provider clients and
// registers each rank's budget with the shared limiter. Providers
// missing an API key are skipped; yahoo needs none and always anchors
// the chain.
func buildProviderChain(config *common.Config, logger *common.Logger) ([]interfaces.MarketDataProvider, *ratelimit.Limiter) {
	limiter := ratelimit.New()
	var providers []interfaces.MarketDataProvider

	register := func(p interfaces.MarketDataProvider, pc common.ProviderConfig) {
		limiter.Register(fetcher.RankName(len(providers)), pc.RateLimit, pc.GetWindow())
		providers = append(providers, p)
	}

	primary := config.Providers.Primary
	if primary.APIKey != "" {
		register(alphavantage.NewClient(primary.APIKey,
			alphavantage.WithBaseURL(primary.BaseURL),
			alphavantage.WithTimeout(primary.GetTimeout()),
			alphavantage.WithLogger(logger),
		), primary)
	} else {
		logger.Warn().Msg("Primary provider API key not configured, skipping alphavantage")
	}

	secondary := config.Providers.Secondary
	if secondary.APIKey != "" {
		register(finnhub.NewClient(secondary.APIKey,
			finnhub.WithBaseURL(secondary.BaseURL),
			finnhub.WithTimeout(secondary.GetTimeout()),
			finnhub.WithLogger(logger),
		), secondary)
	} else {
		logger.Warn().Msg("Secondary provider API key not configured, skipping finnhub")
	}

	tertiary := config.Providers.Tertiary
	register(yahoo.NewClient(
		yahoo.WithBaseURL(tertiary.BaseURL),
		yahoo.WithTimeout(tertiary.GetTimeout()),
		yahoo.WithLogger(logger),
	), tertiary)

	return providers, limiter
}

// Start launches the scan manager's background loops.
func (a *App) Start(ctx context.Context) {
	a.Scanner.Start(ctx)
}

// Shutdown stops background work and closes storage.
func (a *App) Shutdown() {
	a.Scanner.Stop()
	if err := a.JobStore.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close job store")
	}
	a.Logger.Info().Msg("Application shut down")
}
