package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/constants"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/database/gobstore"
	"github.com/kozaktomas/sightmatch/internal/database/postgres"
	"github.com/kozaktomas/sightmatch/internal/database/registry"
	"github.com/kozaktomas/sightmatch/internal/embedder"
	"github.com/kozaktomas/sightmatch/internal/embeddings"
	"github.com/kozaktomas/sightmatch/internal/logging"
	"github.com/kozaktomas/sightmatch/internal/notify"
	"github.com/kozaktomas/sightmatch/internal/resolution"
	"github.com/kozaktomas/sightmatch/internal/textmatch"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Store
	store    database.EmbeddingStoreWriter
	embedder *embedder.Client // nil when FACE_EMBEDDING_URL is unset

	closers []func() error
}

// newLogger builds the process logger from the LOG_* settings.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// openApp loads the configuration and connects the registry and the
// embedding store. Callers must call close.
func openApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	reg, err := registry.Open(ctx, cfg.Registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	a.registry = reg
	a.closers = append(a.closers, reg.Close)

	store, closeStore, err := openEmbeddingStore(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	if cfg.Embedding.ServiceURL != "" {
		a.embedder = embedder.NewClient(cfg.Embedding.ServiceURL, cfg.Embedding.MaxImageSize, logger)
	}
	return a, nil
}

// close releases connections in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// openEmbeddingStore returns the configured embedding store backend and an
// optional close function.
func openEmbeddingStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.EmbeddingStoreWriter, func() error, error) {
	switch cfg.Embedding.StoreBackend {
	case "file", "":
		return gobstore.New(cfg.Embedding.StorePath), nil, nil
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, nil, errors.New("DATABASE_URL environment variable is required for the postgres embedding store")
		}
		pool, err := postgres.Open(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return postgres.NewEmbeddingStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported embedding store backend %q", cfg.Embedding.StoreBackend)
	}
}

// requireEmbedder fails when no face embedding service is configured.
func (a *app) requireEmbedder() (*embedder.Client, error) {
	if a.embedder == nil {
		return nil, errors.New("FACE_EMBEDDING_URL environment variable is required")
	}
	return a.embedder, nil
}

// newBuilder creates the embedding store builder, nil without an embedding service.
func (a *app) newBuilder() (*embeddings.Builder, error) {
	if a.embedder == nil {
		return nil, nil
	}
	return embeddings.NewBuilder(a.registry, a.embedder, a.store, constants.EmbeddingModel, a.logger)
}

// newOrchestrator wires the resolution core with the policy, stopword list
// and SMS sender from the configuration.
func (a *app) newOrchestrator() (*resolution.Orchestrator, error) {
	policy, err := config.LoadPolicy(a.cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	var normalizer *textmatch.Normalizer
	if a.cfg.StopwordsFile != "" {
		words, err := textmatch.LoadStopwords(a.cfg.StopwordsFile)
		if err != nil {
			a.logger.Warn("cannot read stopword list, text matching runs without stopword removal",
				"file", a.cfg.StopwordsFile, "error", err)
		}
		normalizer = textmatch.NewNormalizer(words)
		if err == nil && normalizer.Degraded() {
			a.logger.Warn("stopword list is empty, text matching runs without stopword removal",
				"file", a.cfg.StopwordsFile)
		}
	}

	sender, err := notify.New(a.cfg.Twilio, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating SMS sender: %w", err)
	}

	return resolution.New(resolution.Deps{
		Registry:   a.registry,
		Embeddings: a.store,
		Recorder:   a.registry,
		Sender:     sender,
	}, policy, normalizer, a.logger)
}
