package main

import (
	"context"
	"fmt"

	"github.com/jonathan/group-harmony/internal/config"
	"github.com/jonathan/group-harmony/internal/db"
	"github.com/jonathan/group-harmony/internal/llm"
	"github.com/jonathan/group-harmony/internal/logging"
	"github.com/jonathan/group-harmony/internal/narrative"
	"github.com/jonathan/group-harmony/internal/pipeline"
	"github.com/jonathan/group-harmony/internal/tastegraph"
)

// loadConfig reads the effective configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, nil
}

// app holds the wired pipeline and everything that must be closed with it.
type app struct {
	orchestrator *pipeline.Orchestrator
	store        *db.DB
	generator    llm.Client
}

func (a *app) Close() {
	if a.generator != nil {
		if err := a.generator.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close text generator")
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

// buildApp connects the store and both external clients. A missing
// generation key is not fatal: narratives fall back to defaults.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or STORE_CREDENTIALS is required")
	}
	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.TasteGraphAPIKey == "" {
		logging.Warn().Msg("QLOO_API_KEY is not set; taste-graph calls will be rejected upstream")
	}
	graph := tastegraph.NewClient(tastegraph.Options{
		BaseURL:         cfg.TasteGraphBaseURL,
		APIKey:          cfg.TasteGraphAPIKey,
		SearchTimeout:   cfg.SearchTimeout.Std(),
		InsightsTimeout: cfg.InsightsTimeout.Std(),
		InsightsMethod:  cfg.InsightsMethod,
	})

	llmCfg := llm.DefaultConfig()
	if cfg.GeminiModel != "" {
		llmCfg = llmCfg.WithModel(llm.TierStandard, cfg.GeminiModel)
	}
	llmCfg.Timeout = cfg.GenerationTimeout.Std()

	var gen llm.Client
	if cfg.GeminiAPIKey == "" {
		logging.Warn().Msg("GEMINI_API_KEY is not set; narratives will use defaults")
	} else {
		gen, err = llm.NewClient(ctx, llmCfg, cfg.GeminiAPIKey)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	orch := pipeline.New(store, graph, gen, pipeline.Options{
		ResolveCap: cfg.ResolveCap,
		Take:       cfg.Take,
		Narrative:  narrative.Options{Timeout: llmCfg.CallTimeout()},
	})

	return &app{orchestrator: orch, store: store, generator: gen}, nil
}
