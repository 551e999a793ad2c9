package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/lusakalabs/kwachaflow/internal/common"
	"github.com/lusakalabs/kwachaflow/internal/config"
	"github.com/lusakalabs/kwachaflow/internal/correlation"
	"github.com/lusakalabs/kwachaflow/internal/directory"
	"github.com/lusakalabs/kwachaflow/internal/engine"
	"github.com/lusakalabs/kwachaflow/internal/fees"
	"github.com/lusakalabs/kwachaflow/internal/ledger"
	"github.com/lusakalabs/kwachaflow/internal/llm"
	"github.com/lusakalabs/kwachaflow/internal/router"
)

// pipeline bundles everything a command needs to run the engine.
type pipeline struct {
	engine       *engine.IngestionEngine
	correlations *correlation.SQLiteStore
	extractor    *llm.Extractor
	sweeper      *correlation.Sweeper
}

// buildPipeline wires the full ingestion pipeline from viper configuration.
func buildPipeline() (*pipeline, error) {
	baseURL := viper.GetString("ledger.base_url")
	token := viper.GetString("ledger.token")
	budgetID := viper.GetString("ledger.budget_id")
	if baseURL == "" || token == "" || budgetID == "" {
		return nil, common.NewUserError("ledger.base_url, ledger.token and ledger.budget_id must be configured", common.ErrMissingConfig)
	}
	ledgerClient := ledger.New(baseURL, token, budgetID)

	apiKey := viper.GetString("llm.api_key")
	if apiKey == "" {
		return nil, common.NewUserError("llm.api_key must be configured", common.ErrMissingConfig)
	}
	llmProvider := viper.GetString("llm.provider")
	if llmProvider == "" {
		llmProvider = "anthropic"
	}
	extractor, err := llm.NewExtractor(llm.Config{
		Provider:   llmProvider,
		APIKey:     apiKey,
		Model:      viper.GetString("llm.model"),
		MaxRetries: viper.GetInt("llm.max_retries"),
		RetryDelay: viper.GetDuration("llm.retry_delay"),
		CacheTTL:   viper.GetDuration("llm.cache_ttl"),
		RateLimit:  viper.GetInt("llm.rate_limit"),
	}, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	directoryTTL := viper.GetDuration("directory.ttl")
	cache := directory.New(directoryTTL)

	accountRouter := router.New(router.Config{
		FallbackAccount: viper.GetString("routing.fallback_account"),
		Senders:         viper.GetStringMapString("routing.senders"),
		Endings:         viper.GetStringMapString("routing.endings"),
	}, cache)

	feeTable, err := buildFeeTable()
	if err != nil {
		return nil, err
	}

	dbPath := viper.GetString("correlation.db_path")
	if dbPath == "" {
		dbPath = "~/.local/share/kwachaflow/correlations.db"
	}
	store, err := correlation.NewSQLiteStore(config.ExpandPath(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open correlation store: %w", err)
	}

	window := viper.GetDuration("correlation.window")
	if window <= 0 {
		window = 5 * time.Minute
	}

	ingestionEngine := engine.NewWithConfig(engine.Deps{
		Ledger:       ledgerClient,
		Extractor:    extractor,
		Correlations: store,
		Directory:    cache,
		Router:       accountRouter,
		Fees:         feeTable,
		Logger:       slog.Default(),
	}, engine.Config{
		CorrelationWindow: window,
	})

	sweeper := correlation.NewSweeper(store,
		viper.GetDuration("correlation.sweep_interval"),
		viper.GetDuration("correlation.retention"))

	return &pipeline{
		engine:       ingestionEngine,
		correlations: store,
		extractor:    extractor,
		sweeper:      sweeper,
	}, nil
}

// buildFeeTable applies any configured overrides on top of the built-in
// provider tables.
func buildFeeTable() (*fees.Table, error) {
	if !viper.IsSet("fees") {
		return fees.DefaultTable(), nil
	}
	var cfg fees.TableConfig
	if err := viper.UnmarshalKey("fees", &cfg); err != nil {
		return nil, common.NewUserError("invalid fees configuration", err)
	}
	table, err := fees.FromConfig(cfg)
	if err != nil {
		return nil, common.NewUserError("invalid fees configuration", err)
	}
	return table, nil
}

// close releases the pipeline's resources.
func (p *pipeline) close() {
	if err := p.extractor.Close(); err != nil {
		slog.Warn("failed to close extractor", "error", err)
	}
	if err := p.correlations.Close(); err != nil {
		slog.Warn("failed to close correlation store", "error", err)
	}
}
