package main

import (
	"context"
	"fmt"
	"log/slog"

	"ctxembed/internal/config"
	"ctxembed/internal/db"
	"ctxembed/internal/embedding"
	"ctxembed/internal/trace"
)

// app bundles everything a command needs to talk to the provider.
type app struct {
	cfg      *config.Config
	provider embedding.Provider
	closers  []func() error
}

func (r *app) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			slog.Debug("closing resource", "error", err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// setup loads config, starts tracing and builds the provider stack:
// OpenAI client, optional SQLite cache, tracing.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	rt := &app{cfg: cfg}

	shutdown, err := trace.Init(ctx, cfg.Trace)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	rt.closers = append(rt.closers, func() error { return shutdown(context.Background()) })

	var provider embedding.Provider = embedding.NewOpenAI(embedding.OpenAIConfig{
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		MaxTokens: cfg.Embedding.MaxTokens,
	})

	if cfg.Cache.Enabled {
		database, err := db.Open(cfg.Cache.Path)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("opening cache database: %w", err)
		}
		rt.closers = append(rt.closers, database.Close)
		if err := database.Migrate(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrating cache database: %w", err)
		}
		provider = embedding.NewCachedProvider(provider, database, cfg.Cache.Size)
		slog.Debug("embedding cache enabled", "path", cfg.Cache.Path, "size", cfg.Cache.Size)
	}

	rt.provider = embedding.Traced(provider)
	return rt, nil
}
